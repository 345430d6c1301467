// Package server provides the HTTP backend that the lidx client polls and searches.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /health"), so path wildcards
// are read with [http.Request.PathValue] and wrong methods get a 405 from the mux.
//
// # Endpoints
//
//	GET  /health                       liveness, no auth
//	GET  /api/downloads/status         {items, summary}
//	POST /api/downloads/{id}/retry     {ok: true}
//	GET  /api/search/suggestions       {artists, albums, recordings}, params query & limit
//
// Errors are written as {"error": "..."} with a status derived from the shared sentinel errors.
// Upstream failures map to 502/503/504; an unknown download id maps to 404.
//
// # Middleware
//
// [NewRouter] installs, outermost first: [RequestID], [Logging], [Recover] and [BearerAuth].
// The bearer token is compared in constant time; an empty token disables auth.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// Handlers serving several routes dispatch on [http.Request.Pattern].
package server
