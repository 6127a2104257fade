package presence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-backend/internal/models"
)

const waitFor = time.Second

type recorder struct {
	mu     sync.Mutex
	frames []models.WSEvent
	fail   bool
	closed bool
}

func (r *recorder) WriteJSON(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broken pipe")
	}
	r.frames = append(r.frames, v.(models.WSEvent))
	return nil
}

func (r *recorder) SetWriteDeadline(time.Time) error { return nil }

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// eventually waits until the newest frame satisfies match.
func (r *recorder) eventually(t *testing.T, match func(models.WSEvent) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.frames) > 0 && match(r.frames[len(r.frames)-1])
	}, waitFor, 5*time.Millisecond)
}

func roster(ids ...string) func(models.WSEvent) bool {
	return func(f models.WSEvent) bool {
		return f.Event == models.EventGetOnlineUsers && assert.ObjectsAreEqual(ids, f.Data)
	}
}

// stalledConn blocks every write until it is closed.
type stalledConn struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newStalledConn() *stalledConn { return &stalledConn{closed: make(chan struct{})} }

func (c *stalledConn) WriteJSON(interface{}) error {
	<-c.closed
	return errors.New("use of closed connection")
}

func (c *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (c *stalledConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestConnectDisconnectLookup(t *testing.T) {
	reg := NewRegistry()
	conn := &recorder{}
	h := NewHandle(conn)

	reg.Connect("u1", h)
	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	require.Same(t, h, got)
	require.Equal(t, "u1", h.UserID())

	require.True(t, reg.Disconnect(h))
	_, ok = reg.Lookup("u1")
	require.False(t, ok)
	require.True(t, h.Closed())
	require.True(t, conn.isClosed())
}

func TestRosterBroadcastExcludesDisconnectedUser(t *testing.T) {
	reg := NewRegistry()
	a, b := &recorder{}, &recorder{}
	ha, hb := NewHandle(a), NewHandle(b)

	reg.Connect("alice", ha)
	reg.Connect("bob", hb)
	a.eventually(t, roster("alice", "bob"))

	reg.Disconnect(hb)
	a.eventually(t, roster("alice"))
}

func TestLastConnectWins(t *testing.T) {
	reg := NewRegistry()
	first, second := NewHandle(&recorder{}), NewHandle(&recorder{})

	reg.Connect("u1", first)
	reg.Connect("u1", second)

	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	require.Same(t, second, got)

	// closing the stale connection keeps the newer one registered
	require.False(t, reg.Disconnect(first))
	got, ok = reg.Lookup("u1")
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, []string{"u1"}, reg.Online())
}

func TestEmitToOfflineOrFailedIsNoop(t *testing.T) {
	reg := NewRegistry()
	require.False(t, reg.EmitTo("ghost", models.EventNewMessage, nil))

	conn := &recorder{}
	h := NewHandle(conn)
	reg.Connect("u1", h)
	require.True(t, reg.EmitTo("u1", models.EventNewMessage, "hello"))
	conn.eventually(t, func(f models.WSEvent) bool { return f.Data == "hello" })

	conn.mu.Lock()
	conn.fail = true
	conn.mu.Unlock()

	// the failed write closes the handle, later emits are dropped
	reg.EmitTo("u1", models.EventNewMessage, "again")
	require.Eventually(t, h.Closed, waitFor, 5*time.Millisecond)
	require.False(t, reg.EmitTo("u1", models.EventNewMessage, "dropped"))
}

func TestStalledConnectionDoesNotBlockEmit(t *testing.T) {
	reg := NewRegistry()
	conn := newStalledConn()
	h := NewHandle(conn)
	reg.Connect("bob", h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*2; i++ {
			reg.EmitTo("bob", models.EventNewMessage, i)
		}
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("EmitTo blocked on a stalled connection")
	}

	// overflowing the buffer closes the connection
	require.True(t, h.Closed())

	disconnected := make(chan struct{})
	go func() {
		reg.Disconnect(h)
		close(disconnected)
	}()
	select {
	case <-disconnected:
	case <-time.After(waitFor):
		t.Fatal("Disconnect blocked on a stalled connection")
	}
}

func TestConcurrentConnectDisconnect(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := NewHandle(&recorder{})
			user := string(rune('a' + i%5))
			reg.Connect(user, h)
			reg.EmitTo(user, models.EventNewMessage, i)
			reg.Disconnect(h)
		}(i)
	}
	wg.Wait()
	// the last handle registered for a user is always disconnected after it
	require.Empty(t, reg.Online())
}
