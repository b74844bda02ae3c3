// Package oauth holds the stateless OAuth helpers shared by the jarvis
// server and CLI: PKCE verifier/challenge generation (RFC 7636) and random
// state identifiers.
//
//	pkce, err := oauth.GeneratePKCE()
//	// pkce.CodeChallenge goes into the authorize URL,
//	// pkce.CodeVerifier is kept server-side until the code exchange.
package oauth
