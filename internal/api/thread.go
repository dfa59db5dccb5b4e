package api

import (
	"net/http"

	"github.com/hchen2020/parley/internal/conversation"
	"github.com/hchen2020/parley/internal/log"
	"github.com/hchen2020/parley/internal/thread"
)

// threadHandler serves thread lifecycle endpoints.
type threadHandler struct {
	threads *thread.Registry
	store   *conversation.Store
	logger  log.Logger
}

// create handles POST /chat/thread/new.
func (h *threadHandler) create(w http.ResponseWriter, _ *http.Request) {
	id := h.threads.NewThread()
	h.logger.Debug("thread created", "thread_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"thread_id": id})
}

// historyResponse is the body for GET /chat/thread/{id}/history.
type historyResponse struct {
	ThreadID     string                 `json:"thread_id"`
	UserID       string                 `json:"user_id,omitempty"`
	History      []conversation.Message `json:"history"`
	MessageCount int                    `json:"message_count"`
}

// history handles GET /chat/thread/{id}/history. An optional user_id query
// parameter tags the thread, mirroring the tag-on-first-reference behavior
// of the chat endpoints.
func (h *threadHandler) history(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.threads.Known(id) {
		writeError(w, http.StatusNotFound, "thread_not_found", "unknown thread ID")
		return
	}

	if uid := r.URL.Query().Get("user_id"); uid != "" {
		if err := h.store.Tag(id, uid); err != nil {
			h.logger.Warn("tagging thread", "thread_id", id, "error", err)
		}
	}

	msgs, _ := h.store.History(id)
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		ThreadID:     id,
		UserID:       h.store.UserID(id),
		History:      msgs,
		MessageCount: len(msgs),
	})
}

// clear handles DELETE /chat/thread/{id}. The thread survives with its
// history cleared, so the next turn starts from scratch with sequence 0.
func (h *threadHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.threads.Known(id) {
		writeError(w, http.StatusNotFound, "thread_not_found", "unknown thread ID")
		return
	}

	h.store.Clear(id)
	h.logger.Debug("thread history cleared", "thread_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "thread history cleared"})
}
