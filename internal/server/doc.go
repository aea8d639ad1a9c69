// Package server provides HTTP routing, middleware, and the API handlers of the media service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] registered with Use wraps every later route, the first added running outermost.
// Per-route middleware (such as the ingest [RateLimiter]) runs inside the global stack.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/songs/{songName}").
//
// # Endpoints
//
//	POST /api/upload               store the multipart "song" file
//	POST /api/download-youtube     ingest {"url": ...} and wait for the outcome
//	GET  /api/songs                list track filenames
//	GET  /api/songs/{songName}     stream a track (Range aware, HEAD supported)
//	GET  /api/jobs                 recent ingest jobs
//	GET  /api/jobs/{id}            one ingest job
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus exposition
//
// Errors are JSON objects of the form {"error": "..."}; sentinel errors from the shared
// package decide the status code.
//
// # Lifecycle
//
// [Server.Run] stops accepting connections when its context ends, waits for in-flight
// requests, then drains background ingest jobs, all within the configured shutdown timeout.
package server
