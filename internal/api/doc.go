// Package api provides the JSON and SSE HTTP server for Parley.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes bypass the middleware stack via a top-level mux so they
// remain fast and unthrottled.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health returns {"status":"healthy"}
//
// Chat:
//   - POST /chat runs a synchronous turn (JSON request/response)
//   - POST /chat/stream runs a streaming turn (SSE)
//
// Threads:
//   - POST /chat/thread/new mints a new thread ID
//   - GET /chat/thread/{id}/history returns stored messages, oldest first
//   - DELETE /chat/thread/{id} clears a thread's history
//
// Service:
//   - GET /health/detailed reports circuit state and latency statistics
//   - GET /status reports a compact health summary
//   - GET /chat/prompts lists available prompt type names
//   - GET /chat/welcome streams the fixed welcome message (SSE)
//
// # SSE Framing
//
// Streaming responses use data-only SSE frames, one JSON object per frame:
//
//	data: {"content":"partial text","done":false}
//	data: {"content":"","done":true}
//	data: {"error":"...","done":true}
//
// Once streaming begins the HTTP status is committed, so mid-stream
// failures arrive as an error frame rather than an error status.
//
// # Error Handling
//
// JSON endpoints return a flat error shape:
//
//	{"error": "<code>", "message": "<detail>"}
//
// Provider failures map to 502, an open circuit to 503 with a degraded
// notice, and validation failures to 400.
package api
