// Package oauth brokers delegated access to third-party resource providers
// using the OAuth 2.0 authorization-code flow with PKCE.
//
// # Flow
//
//  1. An authenticated user asks for an auth link. The Manager generates a
//     PKCE pair, stores a PendingAuthorization under a fresh session id and
//     redirects the browser to the provider.
//  2. The provider redirects back to the callback with a code and the
//     session id. The pending authorization is consumed exactly once, the
//     code is redeemed and the refresh token is stored as an Integration.
//  3. Any component calls Manager.GetAccessToken. Cached tokens that
//     outlive the expiry margin are returned directly; otherwise one
//     refresh per (user, integration type) runs and every waiter shares its
//     result.
//
// # Components
//
//   - PendingStore: single-use, TTL-bound session state (memory here,
//     Redis in internal/storage/redisstore)
//   - RedirectBuilder: provider authorize URL
//   - TokenClient: token endpoint calls and error classification
//   - IntegrationStore: durable refresh tokens (memory here, Postgres and
//     Kubernetes Secrets in internal/storage)
//   - AccessTokenCache: short-lived access tokens
//   - Manager: the lifecycle above
//   - Handler: the HTTP endpoints
//
// # Errors
//
// Every error matches one of the sentinel classes in errors.go. Callers of
// GetAccessToken branch on IsRetryable and RequiresReauth.
//
// # Logging
//
// Session and user ids are truncated in logs. Access and refresh tokens are
// held as RedactedToken and never logged.
package oauth
