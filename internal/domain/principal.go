package domain

// Principal is the acting identity supplied by the gateway. This service
// trusts but never creates principals.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}
