package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chat-relay/contract"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/search"
	"chat-relay/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades authenticated clients to WebSocket sessions and
// exposes the REST companions (chat creation, history pages, search).
type Handler struct {
	log        *slog.Logger
	service    services.IChatService
	registry   contract.IRegistry
	verifier   contract.ITokenVerifier
	monitoring *observability.MonitoringManager
	opts       Options
	upgrader   websocket.Upgrader
}

// NewHandler builds a handler. A nil verifier disables authentication,
// used by local tooling only.
func NewHandler(log *slog.Logger, service services.IChatService,
	registry contract.IRegistry, verifier contract.ITokenVerifier,
	monitoring *observability.MonitoringManager, opts Options) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		registry:   registry,
		verifier:   verifier,
		monitoring: monitoring,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{user_id}", h.ServeWS)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /chats", h.CreateChat)
	mux.HandleFunc("GET /chats/{user_id}", h.GetUserChats)
	mux.HandleFunc("GET /messages/{chat_id}", h.GetMessages)
	mux.HandleFunc("GET /search", h.Search)
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		tokenUser, err := h.verifier.Verify(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		// The credential must belong to the identity being claimed.
		if tokenUser != userID {
			http.Error(w, "token does not match user", http.StatusForbidden)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "user_id", userID, "error", err)
		return
	}

	h.log.Info("user connected", "user_id", userID, "remote", conn.RemoteAddr())
	session := NewSession(h.log, conn, userID, h.service, h.registry, h.monitoring, h.opts)
	session.Run(r.Context())
	h.log.Info("user disconnected", "user_id", userID)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createChatRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var body createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	user1, err1 := uuid.Parse(body.User1)
	user2, err2 := uuid.Parse(body.User2)
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	chat, err := h.service.CreateChat(r.Context(), user1, user2)
	if err != nil {
		if errors.Is(err, errs.ErrChatAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.log.Error("chat creation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (h *Handler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	chats, err := h.service.GetUserChats(r.Context(), userID)
	if err != nil {
		h.log.Error("chat listing failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(r.PathValue("chat_id"))
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	cmd := domain.GetMessagesCommand{ChatID: chatID}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}

	messages, next, err := h.service.GetMessages(r.Context(), cmd)
	if err != nil {
		h.log.Error("history page failed", "chat_id", chatID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"cursor":   next,
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := search.ParseQuery(r.URL.Query().Get("q"))
	if err != nil || query.Terms == "" {
		http.Error(w, "invalid query", http.StatusBadRequest)
		return
	}

	hits, err := h.service.SearchMessages(r.Context(), query)
	if err != nil {
		h.log.Error("search failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
