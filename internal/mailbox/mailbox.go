// Package mailbox defines the contracts with the user's mailbox: searching
// candidate messages and sending formal notices on the user's behalf.
package mailbox

import (
	"context"
	"errors"

	"github.com/ovaphlow/pitchfork/service-litigation-go/internal/credential"
)

var ErrSend = errors.New("send failed")

// Message is a mailbox message. Search may return stubs carrying only ID;
// Fetch fills the rest.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
	From     string `json:"from,omitempty"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Body     string `json:"body,omitempty"`
}

// Source lists and reads messages of the credential's mailbox.
type Source interface {
	Search(ctx context.Context, cred credential.Credential, query string, limit int64) ([]Message, error)
	Fetch(ctx context.Context, cred credential.Credential, id string) (Message, error)
}

// Sender sends a plain-text message from the credential's mailbox and archives
// the sent copy. A nil error means the message was accepted for delivery.
type Sender interface {
	Send(ctx context.Context, cred credential.Credential, to, subject, body string) error
}
