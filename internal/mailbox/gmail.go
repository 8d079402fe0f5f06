package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
)

// Scopes needed by Gmail: read for scans, send for dispatch, modify to move
// the sent copy out of view.
var Scopes = []string{gmail.GmailReadonlyScope, gmail.GmailSendScope, gmail.GmailModifyScope}

const me = "me"

// Gmail implements Source and Sender on the Gmail API.
type Gmail struct {
	logger *zap.SugaredLogger
	opts   []option.ClientOption
}

// NewGmail builds the adapter; extra options (endpoint, user agent) are
// appended after the per-user HTTP client.
func NewGmail(logger *zap.SugaredLogger, opts ...option.ClientOption) *Gmail {
	return &Gmail{logger: logger, opts: opts}
}

func (g *Gmail) service(ctx context.Context, cred credential.Credential) (*gmail.Service, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(cred.HTTPClient(ctx))}, g.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return svc, nil
}

// Search returns message stubs (ID and thread) in mailbox order.
func (g *Gmail) Search(ctx context.Context, cred credential.Credential, query string, limit int64) ([]Message, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Users.Messages.List(me).Q(query).MaxResults(limit).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}
	out := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		out = append(out, Message{ID: m.Id, ThreadID: m.ThreadId})
	}
	return out, nil
}

// Fetch reads one message with its headers, snippet and text body.
func (g *Gmail) Fetch(ctx context.Context, cred credential.Credential, id string) (Message, error) {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return Message{}, err
	}
	m, err := svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	if err != nil {
		return Message{}, fmt.Errorf("gmail get %s: %w", id, err)
	}
	msg := Message{ID: m.Id, ThreadID: m.ThreadId, Snippet: m.Snippet}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				msg.Subject = h.Value
			case "from":
				msg.From = h.Value
			}
		}
		msg.Body = textBody(m.Payload)
	}
	return msg, nil
}

// Send delivers the notice and trashes the sent copy so it does not show in
// the user's mailbox. Failing to trash is logged, the send still counts.
func (g *Gmail) Send(ctx context.Context, cred credential.Credential, to, subject, body string) error {
	svc, err := g.service(ctx, cred)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	raw := base64.URLEncoding.EncodeToString(buildMessage(to, subject, body))
	sent, err := svc.Users.Messages.Send(me, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if _, err := svc.Users.Messages.Trash(me, sent.Id).Context(ctx).Do(); err != nil {
		g.logger.Warnw("archive sent notice", "message_id", sent.Id, "err", err)
	}
	return nil
}

// buildMessage renders an RFC 5322 plain-text message. CR and LF are removed
// from header values.
func buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("To: " + headerValue(to) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", headerValue(subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

// textBody returns the first text/plain part, depth first.
func textBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if strings.HasPrefix(p.MimeType, "text/plain") && p.Body != nil && p.Body.Data != "" {
		if b, err := decodeBase64URL(p.Body.Data); err == nil {
			return string(b)
		}
	}
	for _, part := range p.Parts {
		if s := textBody(part); s != "" {
			return s
		}
	}
	return ""
}

func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
