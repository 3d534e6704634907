package domain

import "context"

type NotifyEvent string

const (
	NotifySignatureRequested NotifyEvent = "signature_requested"
	NotifySignerTurn         NotifyEvent = "signer_turn"
	NotifyRequestCompleted   NotifyEvent = "request_completed"
	NotifyRequestCancelled   NotifyEvent = "request_cancelled"
)

// Notifier delivers workflow events to signers and requesters.
// Delivery is best-effort; implementations must not block the caller
// and must never fail the signing path.
type Notifier interface {
	Notify(ctx context.Context, recipient string, event NotifyEvent, payload map[string]any)
}
