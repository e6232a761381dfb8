// Package server receives OAuth redirects for `musync platform connect`.
//
// # Router
//
// [BasicRouter] implements [Router] over [http.ServeMux]. [Middleware] runs in
// the order it was added; [Logging] and [Recover] are installed by default.
// Handlers implement [Handler], which adds the paths they serve, so a handler
// can keep its route definitions to itself. [Route] adapts a plain
// [http.Handler], such as the Prometheus endpoint, to that interface.
//
// # Callbacks
//
// [CallbackHandler] checks the state parameter, hands the authorization code
// to an [Exchanger] (an adapter's HandleCallback) and delivers one
// [CallbackResult] on a channel. GET query parameters and POST form bodies
// are both accepted, so Apple's form_post response mode works unchanged.
// Only the first request is processed.
//
// [CallbackServer] binds the configured host and port, reports the bound
// address, waits for the result or a timeout and then shuts down.
package server
