package ports

import "github.com/layer-3/hackledger/core"

// Tokenizer converts between sessions and signed tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}

// SignatureVerifier checks that message was signed by claimedAddress. It never
// errors: any malformed input is simply not verified.
type SignatureVerifier interface {
	Verify(message string, signature []byte, claimedAddress string) bool
}
