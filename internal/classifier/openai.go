package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const systemPrompt = `Tu es juriste en droit de la consommation. On te donne le sujet et un extrait d'un e-mail.
Si l'e-mail révèle un litige indemnisable (retard ou annulation de transport, colis non livré, remboursement non reçu),
réponds uniquement "MONTANT|LOI", par exemple "250€|Règlement (CE) n° 261/2004".
Sinon réponds exactement "AUCUN|AUCUN".`

// OpenAI is an Oracle backed by any OpenAI-compatible chat completions API.
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewOpenAI(httpClient *http.Client, baseURL, apiKey, model string) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAI{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens: 80,
	})
	if err != nil {
		return "", fmt.Errorf("classifier: marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classifier: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier: sending request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("classifier: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("classifier: decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("classifier: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
