package domain

import "time"

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
	RequestExpired    RequestStatus = "expired"
)

type RequestSigner struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Order int    `json:"order"`
}

// SignatureRequest is the multi-signer workflow for one document. The
// signer list is immutable after creation; only Status and CompletedAt
// change. Transitions run forward only, except explicit cancellation.
type SignatureRequest struct {
	ID          string
	DocumentID  string
	RequesterID string
	Signers     []RequestSigner
	Status      RequestStatus
	Deadline    *time.Time
	Sequential  bool
	Message     string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (r *SignatureRequest) Open() bool {
	return r != nil && (r.Status == RequestPending || r.Status == RequestInProgress)
}

func (r *SignatureRequest) DeadlinePassed(now time.Time) bool {
	return r != nil && r.Deadline != nil && now.After(*r.Deadline)
}
