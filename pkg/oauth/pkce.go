package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// verifierBytes is the number of random bytes behind a code verifier.
	// 64 bytes encode to 86 base64url characters, inside RFC 7636's 43..128 window.
	verifierBytes = 64

	// stateBytes is the number of random bytes for state and session identifiers.
	// 32 bytes encodes to 43 base64url characters.
	stateBytes = 32

	// MinVerifierLength and MaxVerifierLength bound a code verifier (RFC 7636 §4.1).
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// ChallengeMethodS256 is the only challenge method this package produces.
	ChallengeMethodS256 = "S256"
)

// PKCEChallenge is a verifier together with the challenge derived from it.
type PKCEChallenge struct {
	// CodeVerifier stays server-side and is only sent to the token endpoint.
	CodeVerifier string

	// CodeChallenge is sent in the authorization request.
	CodeChallenge string

	CodeChallengeMethod string
}

// GenerateVerifier returns a fresh code verifier drawn from crypto/rand.
// The result only contains base64url characters, a subset of the RFC 7636
// unreserved set.
func GenerateVerifier() (string, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateChallenge derives the S256 challenge for verifier:
// BASE64URL-NOPAD(SHA256(verifier)).
func GenerateChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidateVerifier checks length and charset of a verifier received from
// storage before it is sent to a token endpoint.
func ValidateVerifier(verifier string) error {
	if n := len(verifier); n < MinVerifierLength || n > MaxVerifierLength {
		return fmt.Errorf("code verifier length %d outside [%d,%d]", n, MinVerifierLength, MaxVerifierLength)
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return fmt.Errorf("code verifier contains invalid character %q at %d", verifier[i], i)
		}
	}
	return nil
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// GeneratePKCE generates a verifier and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}
	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       GenerateChallenge(verifier),
		CodeChallengeMethod: ChallengeMethodS256,
	}, nil
}

// GenerateState returns a random, unguessable base64url identifier.
// It is used for OAuth state values and pending authorization session ids.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
