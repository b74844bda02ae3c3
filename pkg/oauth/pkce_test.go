package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestGenerateVerifier(t *testing.T) {
	verifier, err := GenerateVerifier()
	if err != nil {
		t.Fatalf("GenerateVerifier() error = %v", err)
	}

	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		t.Errorf("verifier length = %d, want within [%d,%d]", len(verifier), MinVerifierLength, MaxVerifierLength)
	}

	if err := ValidateVerifier(verifier); err != nil {
		t.Errorf("generated verifier failed validation: %v", err)
	}
}

func TestGenerateChallenge_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if got := GenerateChallenge(verifier); got != want {
		t.Errorf("GenerateChallenge() = %q, want %q", got, want)
	}
}

func TestGenerateChallenge_Deterministic(t *testing.T) {
	for _, n := range []int{MinVerifierLength, 64, MaxVerifierLength} {
		verifier := strings.Repeat("a-._~Z9", MaxVerifierLength)[:n]

		first := GenerateChallenge(verifier)
		second := GenerateChallenge(verifier)
		if first != second {
			t.Errorf("length %d: challenge not deterministic: %q vs %q", n, first, second)
		}

		hash := sha256.Sum256([]byte(verifier))
		if want := base64.RawURLEncoding.EncodeToString(hash[:]); first != want {
			t.Errorf("length %d: challenge = %q, want %q", n, first, want)
		}
		if strings.Contains(first, "=") {
			t.Errorf("length %d: challenge must not be padded: %q", n, first)
		}
	}
}

func TestGeneratePKCE(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE() error = %v", err)
	}

	if pkce.CodeChallengeMethod != "S256" {
		t.Errorf("CodeChallengeMethod = %q, want %q", pkce.CodeChallengeMethod, "S256")
	}

	if want := oauth2.S256ChallengeFromVerifier(pkce.CodeVerifier); pkce.CodeChallenge != want {
		t.Errorf("CodeChallenge = %q, want stdlib result %q", pkce.CodeChallenge, want)
	}
}

func TestGeneratePKCE_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pkce, err := GeneratePKCE()
		if err != nil {
			t.Fatalf("GeneratePKCE() error = %v", err)
		}

		if seen[pkce.CodeVerifier] {
			t.Error("Generated duplicate CodeVerifier")
		}
		seen[pkce.CodeVerifier] = true
	}
}

func TestValidateVerifier(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		wantErr  bool
	}{
		{"minimum length", strings.Repeat("a", 43), false},
		{"maximum length", strings.Repeat("a", 128), false},
		{"too short", strings.Repeat("a", 42), true},
		{"too long", strings.Repeat("a", 129), true},
		{"all unreserved", strings.Repeat("Az09-._~", 6), false},
		{"plus sign", strings.Repeat("a", 42) + "+", true},
		{"slash", strings.Repeat("a", 42) + "/", true},
		{"padding", strings.Repeat("a", 42) + "=", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVerifier(tc.verifier)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateVerifier() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if len(state) != 43 {
		t.Errorf("state length = %d, want 43", len(state))
	}

	other, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if state == other {
		t.Error("Generated duplicate state")
	}
}
