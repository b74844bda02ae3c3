package oauth

import "encoding/json"

// RedactedToken wraps a credential so that it never reaches logs, error
// strings or serialized output by accident.
//
//	token := oauth.NewRedactedToken("secret")
//	fmt.Println(token)   // [REDACTED]
//	token.Value()        // "secret"
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the raw credential. Only call it where the credential is
// sent to a provider or written to a store.
func (t RedactedToken) Value() string {
	return t.value
}

// String implements fmt.Stringer.
func (t RedactedToken) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v.
func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{[REDACTED]}"
}

// IsEmpty reports whether no credential is held.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

// Equal compares two credentials without exposing either.
func (t RedactedToken) Equal(other RedactedToken) bool {
	return t.value == other.value
}

// MarshalText implements encoding.TextMarshaler.
func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON implements json.Marshaler.
func (t RedactedToken) MarshalJSON() ([]byte, error) {
	return json.Marshal("[REDACTED]")
}
