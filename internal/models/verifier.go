package models

// SignatureVerifier recovers the signing address from a (message,
// signature) pair. Pure capability, no state.
type SignatureVerifier interface {
	Recover(message, signature string) (string, error)
}
