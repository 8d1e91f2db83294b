// Command chat-stub is a local development message server implementing the
// small slice of the clinic backend the console needs: the three directory
// endpoints and the websocket fan-out. State is in memory and gone on exit.
//
// Identity is taken from the token (JWT subject when the token parses,
// otherwise the raw token string), so any two terminals can chat:
//
//	CLINIC_TOKEN=u1 go run ./cmd/console
//	CLINIC_TOKEN=u2 go run ./cmd/console
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/clinwire/clinic-console/internal/chat"
	appconfig "github.com/clinwire/clinic-console/internal/config"
	"github.com/clinwire/clinic-console/pkg/logging"
)

type stubServer struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	chats    map[string]chat.Conversation
	messages map[string][]chat.Message
	conns    map[string][]*wsConn // user id -> open sockets
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func newStubServer(logger *logging.Logger) *stubServer {
	return &stubServer{
		logger:   logger,
		chats:    make(map[string]chat.Conversation),
		messages: make(map[string][]chat.Message),
		conns:    make(map[string][]*wsConn),
	}
}

func (s *stubServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.handleWS)
	r.Post("/chats/", s.handleCreateOrGet)
	r.Get("/chats/personal", s.handleList)
	r.Get("/chats/personal/{chatID}/messages", s.handleHistory)
	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	s := newStubServer(logger)

	addr := ":" + cfg.StubPort
	logger.Info("chat stub listening", "addr", addr)
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// identity resolves a user id from a token: JWT subject when it parses,
// the raw token otherwise.
func identity(token string) string {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.Subject != "" {
		return claims.Subject
	}
	return token
}

func callerID(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return identity(strings.TrimPrefix(auth, "Bearer "))
}

func (s *stubServer) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID := identity(token)

	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}

	s.mu.Lock()
	s.conns[userID] = append(s.conns[userID], conn)
	s.mu.Unlock()
	s.logger.Info("websocket connected", "user_id", userID)

	defer func() {
		s.mu.Lock()
		s.conns[userID] = slices.DeleteFunc(s.conns[userID], func(c *wsConn) bool {
			return c == conn
		})
		s.mu.Unlock()
		_ = raw.Close()
		s.logger.Info("websocket disconnected", "user_id", userID)
	}()

	for {
		var frame chat.OutboundFrame
		if err := raw.ReadJSON(&frame); err != nil {
			return
		}
		if frame.ChatID == "" || frame.Text == "" {
			continue
		}
		s.deliver(userID, frame)
	}
}

// deliver stores the message and fans it out to every recipient socket,
// echoing to the sender's own sockets as well; the client only shows a
// sent message once it comes back on the inbound channel.
func (s *stubServer) deliver(senderID string, frame chat.OutboundFrame) {
	msg := chat.Message{
		ID:        uuid.New().String(),
		ChatID:    frame.ChatID,
		SenderID:  senderID,
		Text:      frame.Text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	s.messages[frame.ChatID] = append(s.messages[frame.ChatID], msg)
	targets := make([]*wsConn, 0)
	seen := map[string]struct{}{senderID: {}}
	targets = append(targets, s.conns[senderID]...)
	for _, recipient := range frame.RecipientIDs {
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		targets = append(targets, s.conns[recipient]...)
	}
	s.mu.Unlock()

	for _, conn := range targets {
		if err := conn.writeJSON(msg); err != nil {
			s.logger.Warn("fan-out write failed", "error", err)
		}
	}
}

func (s *stubServer) handleCreateOrGet(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		httpError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	var body struct {
		RecipientID string `json:"recipient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RecipientID == "" {
		httpError(w, "recipient_id is required", http.StatusUnprocessableEntity)
		return
	}

	participants := []string{caller, body.RecipientID}
	sort.Strings(participants)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.chats {
		if slices.Equal(conv.Participants, participants) {
			writeJSON(w, conv)
			return
		}
	}
	conv := chat.Conversation{
		ChatID:       uuid.New().String(),
		Participants: participants,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	s.chats[conv.ChatID] = conv
	writeJSON(w, conv)
}

func (s *stubServer) handleList(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		httpError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Conversation, 0)
	for _, conv := range s.chats {
		if slices.Contains(conv.Participants, caller) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	writeJSON(w, out)
}

func (s *stubServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	if caller == "" {
		httpError(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	chatID := chi.URLParam(r, "chatID")

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.chats[chatID]
	if !ok || !slices.Contains(conv.Participants, caller) {
		httpError(w, "chat not found", http.StatusNotFound)
		return
	}
	msgs := s.messages[chatID]
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, msgs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// httpError writes the FastAPI-style error body the console expects.
func httpError(w http.ResponseWriter, detail string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
