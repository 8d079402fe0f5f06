// Package classifier turns a message into a claimed amount and legal basis by
// asking an external oracle. Any oracle failure degrades to "no case".
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// NoCase is the sentinel amount (and law) meaning the message holds no dispute.
const NoCase = "AUCUN"

// MaxInputRunes caps the text sent to the oracle.
const MaxInputRunes = 400

var ErrClassification = errors.New("classification failed")

// Result is the oracle's verdict for one message.
type Result struct {
	Amount string `json:"amount"`
	Law    string `json:"law"`
}

// NoCaseResult is returned whenever classification yields nothing usable.
var NoCaseResult = Result{Amount: NoCase, Law: NoCase}

// IsCase reports whether the result describes a dispute.
func (r Result) IsCase() bool {
	return r.Amount != "" && !strings.EqualFold(r.Amount, NoCase)
}

// Oracle answers "AMOUNT|LAW" for a text, or "AUCUN|AUCUN".
type Oracle interface {
	Complete(ctx context.Context, text string) (string, error)
}

// Adapter bounds the oracle input and its latency and parses its output.
type Adapter struct {
	oracle  Oracle
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewAdapter(oracle Oracle, timeout time.Duration, logger *zap.SugaredLogger) *Adapter {
	return &Adapter{oracle: oracle, timeout: timeout, logger: logger}
}

// Classify never fails: errors, timeouts and unparseable answers are logged
// and reported as NoCaseResult.
func (a *Adapter) Classify(ctx context.Context, subject, snippet string) Result {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	raw, err := a.oracle.Complete(ctx, Input(subject, snippet))
	if err != nil {
		a.logger.Warnw("classification failed", "subject", subject, "err", fmt.Errorf("%w: %v", ErrClassification, err))
		return NoCaseResult
	}
	res, err := ParseOutput(raw)
	if err != nil {
		a.logger.Warnw("classification unparseable", "subject", subject, "raw", raw, "err", err)
		return NoCaseResult
	}
	return res
}

// Input joins subject and snippet and keeps the first MaxInputRunes runes.
func Input(subject, snippet string) string {
	text := subject + "\n" + snippet
	if utf8.RuneCountInString(text) <= MaxInputRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == MaxInputRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// ParseOutput reads "AMOUNT|LAW". Surrounding whitespace, quotes and code
// fences are ignored; an empty or NoCase amount is NoCaseResult.
func ParseOutput(raw string) (Result, error) {
	s := strings.Trim(strings.TrimSpace(raw), "`\"' \n")
	amount, law, ok := strings.Cut(s, "|")
	if !ok {
		return NoCaseResult, fmt.Errorf("%w: no separator in %q", ErrClassification, raw)
	}
	amount = strings.TrimSpace(amount)
	law = strings.TrimSpace(law)
	if amount == "" || strings.EqualFold(amount, NoCase) {
		return NoCaseResult, nil
	}
	return Result{Amount: amount, Law: law}, nil
}

// NoCaseOracle is used when no classification backend is configured.
type NoCaseOracle struct{}

func (NoCaseOracle) Complete(context.Context, string) (string, error) {
	return NoCase + "|" + NoCase, nil
}
