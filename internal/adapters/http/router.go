// Package httpadapter exposes the chat service over HTTP. Answers stream
// as plain text; cited sources follow the text in a JSON trailer.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
	"github.com/oncare-clinic/rag-chatbot/internal/core/ports"
)

// sourcesMarker separates the streamed answer from the sources trailer.
const sourcesMarker = "\n\n__SOURCES__\n"

// ChatMetrics records finished chats. Implemented by the observability
// layer; nil disables recording.
type ChatMetrics interface {
	RecordChatRequest(category, mode string)
	RecordChatStream(category string, sources int, duration time.Duration)
}

type Router struct {
	chat    ports.ChatService
	metrics ChatMetrics
}

func NewRouter(chat ports.ChatService, chatMetrics ChatMetrics) *Router {
	return &Router{
		chat:    chat,
		metrics: chatMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/chat", rt.handleChat)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	flusher, _ := w.(http.Flusher)
	start := time.Now()
	streamed := false
	emit := func(chunk string) error {
		if !streamed {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			streamed = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	outcome, err := rt.chat.Chat(r.Context(), req, emit)
	if err != nil {
		// Headers are gone once streaming started; the cut-off text is
		// all the client gets.
		if !streamed {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		}
		return
	}

	if len(outcome.Sources) > 0 {
		trailer, marshalErr := json.Marshal(outcome.Sources)
		if marshalErr == nil {
			_ = emit(sourcesMarker + string(trailer))
		}
	}

	if rt.metrics != nil {
		mode := "grounded"
		if outcome.Fallback {
			mode = "fallback"
		}
		rt.metrics.RecordChatRequest(string(outcome.Category), mode)
		rt.metrics.RecordChatStream(string(outcome.Category), len(outcome.Sources), time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrStore), domain.IsKind(err, domain.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
