package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var validate = validator.New()

// wsConn is the subset of *websocket.Conn the session relies on,
// narrowed so tests can script a connection.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Frame is the inbound wire format. A frame either posts content,
// requests a deletion or asks for a history replay; chat_id is always
// required.
type Frame struct {
	ChatID    string `json:"chat_id" validate:"required,uuid4"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Replay    bool   `json:"replay,omitempty"`
}

// Options carries the connection tuning knobs, loaded from configuration.
type Options struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	BufferSize     int
}

// Session owns one WebSocket connection for one authenticated user.
// It registers itself as the user's delivery channel, replays recent
// history for every chat the user belongs to, then relays frames until
// the connection dies. The registry only ever borrows the channel; the
// session closes it exactly once.
type Session struct {
	log        *slog.Logger
	conn       wsConn
	userID     uuid.UUID
	service    services.IChatService
	registry   contract.IRegistry
	monitoring *observability.MonitoringManager
	opts       Options

	out       chan domain.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

var _ contract.Channel = (*Session)(nil)

func NewSession(log *slog.Logger, conn wsConn, userID uuid.UUID,
	service services.IChatService, registry contract.IRegistry,
	monitoring *observability.MonitoringManager, opts Options) *Session {
	return &Session{
		log:        log.With("user_id", userID),
		conn:       conn,
		userID:     userID,
		service:    service,
		registry:   registry,
		monitoring: monitoring,
		opts:       opts,
		out:        make(chan domain.Envelope, opts.BufferSize),
		done:       make(chan struct{}),
	}
}

// Send queues an envelope for delivery without ever blocking the
// caller. A full buffer or a closing session drops the envelope.
func (s *Session) Send(env domain.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- env:
		return true
	default:
		s.monitoring.AddDropped()
		return false
	}
}

// Close is idempotent and safe from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Run drives the session until the connection closes or ctx is
// cancelled. It blocks; the handler calls it once per connection.
func (s *Session) Run(ctx context.Context) {
	s.registry.Register(s.userID, s)
	defer func() {
		// Release instead of Unregister so a replacement session that
		// already took the slot is left untouched.
		s.registry.Release(s.userID, s)
		s.Close()
	}()

	go s.writePump()
	s.replayAll(ctx)
	s.readLoop(ctx)
}

// replayAll pushes the recent history of every chat the user belongs
// to, oldest first, before any live traffic.
func (s *Session) replayAll(ctx context.Context) {
	chats, err := s.service.GetUserChats(ctx, s.userID)
	if err != nil {
		s.log.Error("failed to resolve user chats for replay", "error", err)
		return
	}
	for _, chat := range chats {
		for _, env := range s.service.ReplayHistory(chat.ID) {
			if !s.Send(env) {
				s.log.Warn("replay envelope dropped", "chat_id", chat.ID)
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.log.Warn("unexpected connection error", "error", err)
			}
			return
		}
		s.handleFrame(ctx, raw)
	}
}

// handleFrame parses and dispatches one inbound frame. A malformed
// frame answers with a single error envelope and keeps the connection
// open; it never reaches the engine.
func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.reject(errs.ErrMalformedFrame)
		return
	}
	if err := validate.Struct(frame); err != nil {
		s.reject(errs.ErrMalformedFrame)
		return
	}

	chatID, err := uuid.Parse(frame.ChatID)
	if err != nil {
		s.reject(errs.ErrMalformedFrame)
		return
	}

	switch {
	case frame.Replay:
		for _, env := range s.service.ReplayHistory(chatID) {
			s.Send(env)
		}
	case frame.MessageID != "":
		messageID, err := uuid.Parse(frame.MessageID)
		if err != nil {
			s.reject(errs.ErrMalformedFrame)
			return
		}
		if err := s.service.DeleteMessage(ctx, messageID); err != nil {
			s.reject(err)
		}
	case frame.Content != "":
		_, err := s.service.PostMessage(ctx, domain.PostMessageCommand{
			ChatID:   chatID,
			SenderID: s.userID,
			Content:  frame.Content,
		})
		if err != nil {
			s.reject(err)
		}
	default:
		s.reject(fmt.Errorf("%w: empty frame", errs.ErrMalformedFrame))
	}
}

// reject reports a failed operation to this user only.
func (s *Session) reject(err error) {
	s.log.Debug("frame rejected", "error", err)
	s.monitoring.AddError()
	if !s.Send(domain.ErrorEnvelope(err)) {
		s.log.Warn("error envelope dropped")
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case env := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.log.Debug("write failed", "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
