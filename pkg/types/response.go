package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// CartEnvelope carries the canonical cart plus its provenance tag so the
// presentation layer can tell a live server cart from a stale local snapshot.
type CartEnvelope struct {
	Data   any    `json:"data"`
	Source string `json:"source"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
