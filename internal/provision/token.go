package provision

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of an access token; hex encoding doubles it to a
// 20-character token, matching what heater firmware expects in the join
// command and later as the HTTP Basic-auth secret.
const tokenBytes = 10

// NewToken mints a fresh access token. Tokens are generated once per session
// and never mutated afterwards.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
