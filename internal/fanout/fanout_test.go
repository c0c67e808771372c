package fanout

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/xbiggyl/wsassistant/internal/protocol"
)

// fakeConn records delivered events and can be made to fail.
type fakeConn struct {
	events []protocol.Message
	fail   bool
	closed bool
	mu     sync.Mutex
}

func (c *fakeConn) WriteEvent(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("connection reset")
	}
	c.events = append(c.events, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.events...)
}

func testFanout() *Fanout {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(logger, nil)
}

func statusMessage(t *testing.T, recording bool) protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.TypeStatus, protocol.StatusPayload{Recording: recording, Connected: true})
	if err != nil {
		t.Fatalf("Failed to build message: %v", err)
	}
	return msg
}

func TestBroadcastDeliversToAllClients(t *testing.T) {
	f := testFanout()

	a := &fakeConn{}
	b := &fakeConn{}
	f.Register("client-a", a)
	f.Register("client-b", b)

	f.Broadcast("sess-1", []string{"client-a", "client-b"}, statusMessage(t, true))

	if len(a.received()) != 1 || len(b.received()) != 1 {
		t.Errorf("Expected both clients to receive the event, got %d and %d",
			len(a.received()), len(b.received()))
	}
}

func TestBroadcastSkipsUnknownClients(t *testing.T) {
	f := testFanout()

	a := &fakeConn{}
	f.Register("client-a", a)

	// Must not panic or fail for the unregistered id.
	f.Broadcast("sess-1", []string{"client-a", "client-gone"}, statusMessage(t, true))

	if len(a.received()) != 1 {
		t.Errorf("Expected registered client to receive the event, got %d", len(a.received()))
	}
}

func TestBroadcastFailureDoesNotBlockOthers(t *testing.T) {
	f := testFanout()

	failing := &fakeConn{fail: true}
	healthy := &fakeConn{}
	f.Register("client-bad", failing)
	f.Register("client-good", healthy)

	f.Broadcast("sess-1", []string{"client-bad", "client-good"}, statusMessage(t, true))

	if len(healthy.received()) != 1 {
		t.Errorf("Expected healthy client to receive the event, got %d", len(healthy.received()))
	}

	stats := f.Stats()
	if stats.SendFailures != 1 {
		t.Errorf("Expected 1 send failure, got %d", stats.SendFailures)
	}

	// The stale route is removed reactively; a later broadcast skips it.
	failing.fail = false
	f.Broadcast("sess-1", []string{"client-bad"}, statusMessage(t, false))
	if len(failing.received()) != 0 {
		t.Error("Expected stale route to have been removed after send failure")
	}
}

func TestPerRecipientOrdering(t *testing.T) {
	f := testFanout()

	a := &fakeConn{}
	f.Register("client-a", a)

	first := statusMessage(t, true)
	second := statusMessage(t, false)
	f.Broadcast("sess-1", []string{"client-a"}, first)
	f.Broadcast("sess-1", []string{"client-a"}, second)

	events := a.received()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if string(events[0].Payload) != string(first.Payload) ||
		string(events[1].Payload) != string(second.Payload) {
		t.Error("Expected events delivered in broadcast order")
	}
}

func TestSendTo(t *testing.T) {
	f := testFanout()

	a := &fakeConn{}
	f.Register("client-a", a)

	if err := f.SendTo("client-a", protocol.NewErrorMessage(protocol.CodeBadMessage, "bad frame", "")); err != nil {
		t.Errorf("SendTo failed: %v", err)
	}

	if len(a.received()) != 1 {
		t.Errorf("Expected 1 event, got %d", len(a.received()))
	}

	// Unknown client is a silent no-op.
	if err := f.SendTo("client-gone", statusMessage(t, true)); err != nil {
		t.Errorf("SendTo for unknown client should not fail, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	f := testFanout()

	a := &fakeConn{}
	f.Register("client-a", a)
	f.Remove("client-a")

	f.Broadcast("sess-1", []string{"client-a"}, statusMessage(t, true))
	if len(a.received()) != 0 {
		t.Error("Expected no delivery after route removal")
	}

	if a.closed {
		t.Error("Expected fanout not to close the connection; transport owns it")
	}
}
