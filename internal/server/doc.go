// Package server exposes the integration broker over HTTP.
//
// # Endpoints
//
//   - GET /health - liveness probe (unauthenticated)
//   - GET /metrics - Prometheus exposition (unauthenticated)
//   - GET /integrations/GenerateAuthLink - start authorization (authenticated)
//   - GET /integrations/ExchangeCodeForToken - provider callback (rate limited per client IP)
//   - GET /integrations - list the caller's integrations (authenticated)
//
// Callers are authenticated with an HS256 bearer JWT whose sub claim is the
// user id, or with a header set by an authenticating proxy. The callback
// endpoint is not authenticated: it is reached by the browser redirect from
// the provider and is bound to a user through the pending session instead.
//
// Every request gets an X-Request-ID (generated when absent) and a log line
// whose level follows the response status. Query strings are not logged
// because the callback carries the authorization code.
package server
