package responses

// Envelope is the body of every successful JSON response.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody carries a stable code for clients to branch on. Details is a
// field -> reason map for validation failures and is omitted otherwise.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
