package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/hchen2020/parley/internal/gateway"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/thread"
	"github.com/hchen2020/parley/internal/turn"
)

// maxRequestBody limits chat request bodies to 1MB.
const maxRequestBody = 1024 * 1024

// degradedMessage is returned while the circuit breaker is open.
const degradedMessage = "The assistant is temporarily unavailable. Please try again in a moment."

// turnRunner executes chat turns. Implemented by turn.Executor.
type turnRunner interface {
	Execute(ctx context.Context, req turn.Request) (*turn.Result, error)
	Stream(ctx context.Context, req turn.Request) iter.Seq2[turn.StreamValue, error]
}

// chatHandler serves the synchronous and streaming chat endpoints.
type chatHandler struct {
	exec   turnRunner
	logger log.Logger
}

// chatRequest is the request body shared by both chat endpoints.
type chatRequest struct {
	Message    string `json:"message"`
	ThreadID   string `json:"thread_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	PromptType string `json:"prompt_type,omitempty"`
}

// chatResponse is the synchronous chat response body.
type chatResponse struct {
	Response   string `json:"response"`
	ThreadID   string `json:"thread_id"`
	UserID     string `json:"user_id,omitempty"`
	Status     string `json:"status"`
	PromptType string `json:"prompt_type"`
}

// streamFrame is one data-only SSE frame.
type streamFrame struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done"`
}

// send handles POST /chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	promptType := req.PromptType
	if promptType == "" {
		promptType = "default"
	}

	res, err := h.exec.Execute(r.Context(), turn.Request{
		Message:    req.Message,
		ThreadID:   req.ThreadID,
		UserID:     req.UserID,
		PromptType: req.PromptType,
	})
	if err != nil {
		// An open circuit still produces chat output: the caller gets the
		// degraded notice as a response body, not an error envelope.
		if errors.Is(err, gateway.ErrCircuitOpen) {
			h.logger.Warn("turn rejected, circuit open")
			writeJSON(w, http.StatusServiceUnavailable, chatResponse{
				Response:   degradedMessage,
				ThreadID:   req.ThreadID,
				UserID:     req.UserID,
				Status:     "error",
				PromptType: promptType,
			})
			return
		}
		h.writeTurnError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   res.Response,
		ThreadID:   res.ThreadID,
		UserID:     res.UserID,
		Status:     "success",
		PromptType: promptType,
	})
}

// stream handles POST /chat/stream.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}
	setSSEHeaders(w)

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "thread_id", req.ThreadID)

	chunks := 0
	for v, err := range h.exec.Stream(ctx, turn.Request{
		Message:    req.Message,
		ThreadID:   req.ThreadID,
		UserID:     req.UserID,
		PromptType: req.PromptType,
	}) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "thread_id", req.ThreadID)
			return
		default:
		}

		if err != nil {
			_ = writeFrame(w, flusher, streamFrame{Error: streamErrorMessage(err), Done: true})
			return
		}

		if v.Done {
			_ = writeFrame(w, flusher, streamFrame{Done: true})
			h.logger.Debug("SSE stream completed", "thread_id", v.Output.ThreadID, "chunks", chunks)
			return
		}

		chunks++
		if err := writeFrame(w, flusher, streamFrame{Content: v.Chunk}); err != nil {
			// Write failure usually means the connection closed
			h.logger.Debug("failed to write chunk", "error", err)
			return
		}
	}
}

// decodeRequest parses and bounds the request body. On failure it writes the
// error response and returns ok=false.
func (h *chatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return chatRequest{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return chatRequest{}, false
	}
	return req, true
}

// writeTurnError maps turn and gateway errors to HTTP error responses.
func (h *chatHandler) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, turn.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", "message is required")
	case errors.Is(err, thread.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread ID must be a UUID")
	case errors.Is(err, gateway.ErrTimeout):
		h.logger.Error("turn failed", "error", err)
		writeError(w, http.StatusBadGateway, "timeout", "model response timed out")
	default:
		h.logger.Error("turn failed", "error", err)
		writeError(w, http.StatusBadGateway, "provider_error", "failed to generate a response")
	}
}

// streamErrorMessage maps an error to the message carried in an SSE error
// frame.
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, turn.ErrEmptyMessage):
		return "message is required"
	case errors.Is(err, thread.ErrInvalidID):
		return "thread ID must be a UUID"
	case errors.Is(err, gateway.ErrCircuitOpen):
		return degradedMessage
	case errors.Is(err, gateway.ErrTimeout):
		return "model response timed out"
	default:
		return err.Error()
	}
}

// setSSEHeaders prepares the response for server-sent events.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeFrame writes a single data-only SSE frame.
// SSE format: "data: <json>\n\n"
func writeFrame(w io.Writer, flusher http.Flusher, frame streamFrame) error {
	jsonData, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	flusher.Flush()
	return nil
}
