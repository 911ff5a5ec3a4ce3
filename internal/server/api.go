package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/models"
	"github.com/teamline-chat/teamline/internal/server/store"
)

const maxContentLength = 2000

// API implements the REST contract the client core consumes, plus the
// message-creation path shared with the WebSocket gateway.
type API struct {
	store *store.Store
	hub   *Hub
	log   zerolog.Logger
}

// NewAPI creates the API layer
func NewAPI(st *store.Store, hub *Hub, log zerolog.Logger) *API {
	return &API{store: st, hub: hub, log: log.With().Str("component", "api").Logger()}
}

// Authenticate resolves a bearer token to its user
func (a *API) Authenticate(token string) (*models.User, error) {
	userID, err := a.store.GetSessionUser(hashToken(token))
	if err != nil {
		return nil, errors.New("invalid or expired token")
	}
	user, err := a.store.GetUserByID(userID)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}

// CreateMessage validates, persists, and fans out one message. Used by both
// the REST handler and the WebSocket send path.
func (a *API) CreateMessage(sender *models.User, chatID uuid.UUID, content string, mentions []uuid.UUID, replyTo *uuid.UUID, nonce string) (*models.Message, error) {
	if len(content) == 0 {
		return nil, errors.New("message content cannot be empty")
	}
	if len(content) > maxContentLength {
		return nil, fmt.Errorf("message content too long (max %d characters)", maxContentLength)
	}

	conv, err := a.store.GetConversation(chatID)
	if err != nil {
		return nil, errors.New("conversation not found")
	}
	if !conv.HasParticipant(sender.ID) {
		return nil, errors.New("not a participant")
	}

	msg := models.NewMessage(chatID, sender.ID, content, mentions)
	msg.ReplyTo = replyTo
	if err := a.store.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	a.hub.PushMessage(conv, msg, models.SenderSummary{
		ID:          sender.ID,
		DisplayName: sender.GetDisplayName(),
		AvatarURL:   sender.AvatarURL,
	}, nonce)

	return msg, nil
}

// --- HTTP handlers ---

// HandleLogin handles POST /api/login
func (a *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.store.GetUserByEmail(req.Email)
	if err != nil || !checkPassword(req.Password, user.PasswordHash) {
		httpError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := generateToken()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	if err := a.store.CreateSession(hashToken(token), user.ID); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

// HandleMessages handles GET and POST /api/messages
func (a *API) HandleMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireAuth(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.handleListMessages(w, r, user)
	case http.MethodPost:
		a.handleSendMessage(w, r, user)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request, user *models.User) {
	chatID, err := uuid.Parse(r.URL.Query().Get("chat_id"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	conv, err := a.store.GetConversation(chatID)
	if err != nil || !conv.HasParticipant(user.ID) {
		httpError(w, http.StatusForbidden, "not a participant")
		return
	}

	var cursor *uuid.UUID
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = &parsed
	}

	messages, err := a.store.ListMessages(chatID, limit, cursor)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	// the next cursor is the oldest message of this page
	next := ""
	if len(messages) > 0 {
		next = messages[0].ID.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":    messages,
		"next_cursor": next,
	})
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req struct {
		ChatID   uuid.UUID   `json:"chat_id"`
		Content  string      `json:"content"`
		Mentions []uuid.UUID `json:"mentions"`
		ReplyTo  *uuid.UUID  `json:"reply_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := a.CreateMessage(user, req.ChatID, req.Content, req.Mentions, req.ReplyTo, "")
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// HandleMessageByID handles GET /api/messages/{id}
func (a *API) HandleMessageByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAuth(w, r); !ok {
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	id, err := uuid.Parse(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := a.store.GetMessage(id)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load message")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// HandleUsers handles GET /api/users, the mention candidate directory
func (a *API) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAuth(w, r); !ok {
		return
	}
	directory, err := a.store.ListDirectory()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, directory)
}

// HandleConversations handles GET /api/conversations
func (a *API) HandleConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	conversations, err := a.store.ListConversationsForUser(user.ID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (a *API) requireAuth(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		httpError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}
	user, err := a.Authenticate(token)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return user, true
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
