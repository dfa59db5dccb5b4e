package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/hchen2020/parley/internal/gateway"
	"github.com/hchen2020/parley/internal/prompt"
	"github.com/hchen2020/parley/internal/thread"
)

// health is a simple health check endpoint for probes.
// Returns 200 OK with {"status":"healthy"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// detailedHealthResponse is the body for GET /health/detailed.
type detailedHealthResponse struct {
	Status        string `json:"status"`
	ActiveThreads int    `json:"active_threads"`
	gateway.Health
}

// statusResponse is the compact body for GET /status.
type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	CircuitState  string `json:"circuit_state"`
	ActiveThreads int    `json:"active_threads"`
}

// statusHandler reports gateway health and thread counts.
type statusHandler struct {
	gateway *gateway.Gateway
	threads *thread.Registry
	version string
}

func (h *statusHandler) overall(gh gateway.Health) string {
	if gh.CircuitState != gateway.CircuitClosed.String() {
		return "degraded"
	}
	return "healthy"
}

// detailed serves GET /health/detailed with circuit breaker state and
// latency statistics including the performance grade.
func (h *statusHandler) detailed(w http.ResponseWriter, _ *http.Request) {
	gh := h.gateway.Health()
	writeJSON(w, http.StatusOK, detailedHealthResponse{
		Status:        h.overall(gh),
		ActiveThreads: h.threads.Count(),
		Health:        gh,
	})
}

// status serves GET /status, a compact summary for dashboards.
func (h *statusHandler) status(w http.ResponseWriter, _ *http.Request) {
	gh := h.gateway.Health()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        h.overall(gh),
		Version:       h.version,
		CircuitState:  gh.CircuitState,
		ActiveThreads: h.threads.Count(),
	})
}

// promptsHandler lists the available prompt type names.
type promptsHandler struct {
	prompts *prompt.Registry
}

func (h *promptsHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"prompts": h.prompts.Types()})
}

// welcomeMessage greets new users. Streamed word by word for a typing
// effect; the content is fixed and never goes through the model.
const welcomeMessage = `Hello! 👋 I'm your AI Chat Assistant, and I'm here to help you with any questions or tasks you might have.

I can assist you with:
• Answering questions on a wide range of topics
• Helping with creative writing and brainstorming
• Providing technical guidance and explanations
• Problem-solving and analysis
• General conversation and advice

Feel free to ask me anything! What would you like to talk about today?`

// welcomeHandler streams the fixed welcome message over SSE.
type welcomeHandler struct {
	// wordDelay spaces out words for a typing effect. Tests set it to zero.
	wordDelay time.Duration
}

func (h *welcomeHandler) welcome(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}
	setSSEHeaders(w)

	ctx := r.Context()
	for i, word := range strings.Fields(welcomeMessage) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk := word
		if i > 0 {
			chunk = " " + word
		}
		if err := writeFrame(w, flusher, streamFrame{Content: chunk}); err != nil {
			return
		}
		if h.wordDelay > 0 {
			time.Sleep(h.wordDelay)
		}
	}

	_ = writeFrame(w, flusher, streamFrame{Done: true})
}
