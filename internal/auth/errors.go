package auth

// Reason classifies why a credential was rejected. Callers must not leak
// the reason to the client; it exists for logs and tests.
type Reason string

const (
	ReasonMissing          Reason = "missing"
	ReasonMalformed        Reason = "malformed"
	ReasonExpired          Reason = "expired"
	ReasonSignatureInvalid Reason = "signature-invalid"
	ReasonIssuerMismatch   Reason = "issuer-mismatch"
)

type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "auth: " + string(e.Reason) + ": " + e.Err.Error()
	}
	return "auth: " + string(e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }
