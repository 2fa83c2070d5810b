// Package httpmw provides HTTP middleware for the public API server.
//
// httpserver.NewHandler composes them outermost first: security headers,
// CORS, recovery, request ID, client IP, rate limiting, tracing, trace
// headers, metrics, request logger, then the chi router with access
// logging and route annotation inside it.
//
// Query strings, user agents and other client supplied headers are kept
// out of logs.
package httpmw
