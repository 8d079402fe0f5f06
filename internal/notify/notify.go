// Package notify delivers operator notifications. Delivery is best effort:
// callers log a failed Notify and carry on.
package notify

import (
	"context"
	"fmt"
)

type Sink interface {
	Notify(ctx context.Context, text string) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// CommissionMessage is the operator text for one sent notice.
func CommissionMessage(company, amount string, commission float64, user string) string {
	return fmt.Sprintf("Nouvelle mise en demeure envoyée: %s %s — commission %.2f€ (%s)", company, amount, commission, user)
}
