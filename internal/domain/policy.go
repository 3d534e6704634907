package domain

type PolicyAction string

const (
	PolicyActionSign   PolicyAction = "sign"
	PolicyActionRevoke PolicyAction = "revoke"
	PolicyActionCancel PolicyAction = "cancel"
)

type PolicyInput struct {
	Action       PolicyAction `json:"action"`
	Principal    Principal    `json:"principal"`
	DocumentID   string       `json:"document_id,omitempty"`
	RequestID    string       `json:"request_id,omitempty"`
	DocumentType string       `json:"document_type,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
