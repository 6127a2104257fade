package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"social-backend/internal/models"
	"social-backend/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var (
	ErrHandleClosed = errors.New("presence: connection closed")
	ErrSlowConsumer = errors.New("presence: send buffer full")
)

// Conn is the part of a websocket connection a Handle writes to.
type Conn interface {
	utils.JSONWriter
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Handle is one live realtime connection. Emit only enqueues; frames are
// written by a per-connection loop started on Connect, so a stalled socket
// never blocks the caller. A handle whose buffer fills up is closed.
type Handle struct {
	ID string

	conn Conn
	send chan models.WSEvent
	done chan struct{}

	mu       sync.Mutex
	userID   string
	started  bool
	loopDone chan struct{}

	closeOnce sync.Once
}

// NewHandle wraps a websocket connection (or anything that writes JSON frames).
func NewHandle(conn Conn) *Handle {
	return &Handle{
		ID:       uuid.NewString(),
		conn:     conn,
		send:     make(chan models.WSEvent, sendBuffer),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// UserID of the user the handle was registered for, empty before Connect.
func (h *Handle) UserID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.userID
}

// start binds the handle to userID and launches the write loop once.
func (h *Handle) start(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userID = userID
	if !h.started {
		h.started = true
		go h.writeLoop()
	}
}

// Emit queues one {event, data} frame.
func (h *Handle) Emit(event string, payload interface{}) error {
	select {
	case <-h.done:
		return ErrHandleClosed
	default:
	}

	select {
	case h.send <- models.WSEvent{Event: event, Data: payload}:
		return nil
	case <-h.done:
		return ErrHandleClosed
	default:
		log.Warn().Str("conn", h.ID).Str("user", h.UserID()).Msg("send buffer full, closing connection")
		h.shutdown()
		return ErrSlowConsumer
	}
}

// Closed reports whether the handle stopped accepting frames.
func (h *Handle) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Close stops the write loop, closes the connection and waits for the loop
// to exit, so the connection is not written to after Close returns.
func (h *Handle) Close() {
	h.shutdown()

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if started {
		<-h.loopDone
	}
}

func (h *Handle) shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		// unblocks a write stuck on the socket
		_ = h.conn.Close()
	})
}

func (h *Handle) writeLoop() {
	defer close(h.loopDone)

	for {
		select {
		case <-h.done:
			return
		case frame := <-h.send:
			if err := h.write(frame); err != nil {
				log.Debug().Err(err).Str("conn", h.ID).Str("event", frame.Event).Msg("delivery failed")
				h.shutdown()
				return
			}
		}
	}
}

func (h *Handle) write(frame models.WSEvent) error {
	if err := h.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return utils.SendJSON(h.conn, frame)
}
