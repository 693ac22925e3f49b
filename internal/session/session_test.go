package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/driftnet-io/drift-agent/internal/metrics"
	"github.com/driftnet-io/drift-agent/internal/snapshot"
)

// failSampler forces every collector default, simulating a device where all
// measurement strategies fail.
type failSampler struct{}

func (failSampler) CPUFreePercent() float64  { panic("cpu unavailable") }
func (failSampler) Memory() (uint64, uint64) { panic("memory unavailable") }
func (failSampler) Battery() metrics.Battery { panic("battery unavailable") }
func (failSampler) Storage() metrics.Storage { panic("storage unavailable") }
func (failSampler) Network() metrics.Network { panic("network unavailable") }

// fakeClock advances instantly and records every sleep.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) recordedSleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeTransport scripts connect results and inbound frames, and records
// every outbound message. Exhausted inbound scripts read as timeouts, i.e.
// a quiet wire.
type fakeTransport struct {
	mu          sync.Mutex
	connectErrs []error
	inbound     []*Message
	sendFailAt  int // fail the Nth send (0-based); -1 disables
	sent        []Message
	connects    int
	closes      int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sendFailAt: -1}
}

func (t *fakeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	if len(t.connectErrs) > 0 {
		err := t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
		return err
	}
	return ctx.Err()
}

func (t *fakeTransport) Send(msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendFailAt == len(t.sent) {
		t.sendFailAt = -1
		return ErrConnectionClosed
	}
	t.sent = append(t.sent, *msg)
	return nil
}

func (t *fakeTransport) Receive(timeout time.Duration) (*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) == 0 {
		return nil, ErrReceiveTimeout
	}
	msg := t.inbound[0]
	t.inbound = t.inbound[1:]
	return msg, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *fakeTransport) sentMessages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// runUntil drives the session until cond holds (or the test times out),
// then cancels and waits for Run to return.
func runUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("condition not reached before timeout")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func newTestSession(transport Transport) (*Session, *fakeClock) {
	clock := newFakeClock()
	s := New(Config{
		HeartbeatInterval: 5 * time.Second,
		AckTimeout:        5 * time.Second,
		BackoffBase:       5 * time.Second,
		BackoffMax:        60 * time.Second,
	}, testIdentity(), snapshot.NewBuilder(failSampler{}), transport).WithClock(clock)
	return s, clock
}

func TestBackoffSequence(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErrs = make([]error, 8)
	for i := range transport.connectErrs {
		transport.connectErrs[i] = errors.New("connection refused")
	}

	s, clock := newTestSession(transport)
	runUntil(t, s, func() bool { return len(transport.sentMessages()) >= 1 })

	want := []time.Duration{
		5 * time.Second,
		7500 * time.Millisecond,
		11250 * time.Millisecond,
		16875 * time.Millisecond,
		25312500 * time.Microsecond,
		37968750 * time.Microsecond,
		56953125 * time.Microsecond,
		60 * time.Second,
	}
	got := clock.recordedSleeps()
	if len(got) < len(want) {
		t.Fatalf("recorded %d sleeps, want at least %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("sleep %d = %v, want %v", i, got[i], w)
		}
	}

	// A successful registration resets the delay to base
	if s.Stats().ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want reset to 5s", s.Stats().ReconnectDelay)
	}
}

func TestFirstMessageIsRegisterWithDefaults(t *testing.T) {
	transport := newFakeTransport()

	s, _ := newTestSession(transport)
	runUntil(t, s, func() bool { return len(transport.sentMessages()) >= 1 })

	sent := transport.sentMessages()
	first := sent[0]
	if first.Type != MessageTypeRegister {
		t.Fatalf("first message type = %q, want register", first.Type)
	}
	if first.DeviceID == "" {
		t.Error("register message has no device_id")
	}
	if first.Snapshot == nil {
		t.Fatal("register message has no snapshot")
	}
	// Every collector failed; the snapshot must still be fully populated
	// with the documented defaults.
	if first.Snapshot.CPUFreePercent != metrics.DefaultCPUFreePercent {
		t.Errorf("CPUFreePercent = %v, want default", first.Snapshot.CPUFreePercent)
	}
	if first.Snapshot.Battery != metrics.DefaultBattery() {
		t.Errorf("Battery = %+v, want default", first.Snapshot.Battery)
	}
	if first.Snapshot.Storage != metrics.DefaultStorage() {
		t.Errorf("Storage = %+v, want default", first.Snapshot.Storage)
	}
}

func TestMissingRegistrationAckDoesNotBlockHeartbeat(t *testing.T) {
	transport := newFakeTransport()

	s, _ := newTestSession(transport)
	runUntil(t, s, func() bool { return len(transport.sentMessages()) >= 2 })

	sent := transport.sentMessages()
	if sent[0].Type != MessageTypeRegister {
		t.Errorf("message 0 = %q, want register", sent[0].Type)
	}
	if sent[1].Type != MessageTypeHeartbeat {
		t.Errorf("message 1 = %q, want heartbeat despite missing ack", sent[1].Type)
	}
	if sent[1].Snapshot == nil {
		t.Error("heartbeat has no snapshot")
	}
}

func TestPingDuringStreamingTriggersOnePong(t *testing.T) {
	transport := newFakeTransport()
	transport.inbound = []*Message{
		{Type: MessageTypeRegistrationAck},
		{Type: MessageTypePing},
	}

	s, _ := newTestSession(transport)
	runUntil(t, s, func() bool {
		var pongs, heartbeats int
		for _, m := range transport.sentMessages() {
			switch m.Type {
			case MessageTypePong:
				pongs++
			case MessageTypeHeartbeat:
				heartbeats++
			}
		}
		return pongs >= 1 && heartbeats >= 3
	})

	var pongs []Message
	for _, m := range transport.sentMessages() {
		if m.Type == MessageTypePong {
			pongs = append(pongs, m)
		}
	}
	if len(pongs) != 1 {
		t.Fatalf("sent %d pongs, want exactly 1", len(pongs))
	}
	if pongs[0].DeviceID != "ab12cd34" {
		t.Errorf("pong device_id = %q", pongs[0].DeviceID)
	}
}

func TestHeartbeatAckRecorded(t *testing.T) {
	transport := newFakeTransport()
	transport.inbound = []*Message{
		{Type: MessageTypeRegistrationAck},
		{Type: MessageTypeHeartbeatAck, Seq: 1},
	}

	s, _ := newTestSession(transport)
	runUntil(t, s, func() bool { return len(transport.sentMessages()) >= 2 })

	if s.Stats().LastAckSeq != 1 {
		t.Errorf("LastAckSeq = %d, want 1", s.Stats().LastAckSeq)
	}
}

func TestUnknownInboundIgnored(t *testing.T) {
	transport := newFakeTransport()
	transport.inbound = []*Message{
		{Type: MessageTypeRegistrationAck},
		{Type: "rebalance"},
		{Type: ""},
	}

	s, _ := newTestSession(transport)
	runUntil(t, s, func() bool { return len(transport.sentMessages()) >= 3 })

	for _, m := range transport.sentMessages() {
		if m.Type != MessageTypeRegister && m.Type != MessageTypeHeartbeat {
			t.Errorf("unexpected reply %q to unknown inbound message", m.Type)
		}
	}
}

func TestTransportFailureDuringStreamingBacksOff(t *testing.T) {
	transport := newFakeTransport()
	// Register succeeds (send 0); the first heartbeat (send 1) fails
	transport.sendFailAt = 1

	s, clock := newTestSession(transport)
	runUntil(t, s, func() bool {
		return transport.connectCount() >= 2 && len(transport.sentMessages()) >= 2
	})

	sleeps := clock.recordedSleeps()
	if len(sleeps) < 1 {
		t.Fatal("no backoff sleep recorded after transport failure")
	}
	if sleeps[0] != 5*time.Second {
		t.Errorf("first backoff = %v, want base 5s", sleeps[0])
	}

	// No sends between the failure and the reconnection: the message after
	// the failed heartbeat must be a fresh register on the new connection.
	sent := transport.sentMessages()
	if sent[1].Type != MessageTypeRegister {
		t.Errorf("first message after reconnect = %q, want register", sent[1].Type)
	}

	if s.Stats().State != StateBackoff && s.Stats().State != StateStreaming &&
		s.Stats().State != StateRegistered && s.Stats().State != StateConnecting {
		t.Errorf("unexpected terminal state %v", s.Stats().State)
	}
}

func TestShutdownBeforeConnect(t *testing.T) {
	transport := newFakeTransport()
	s, _ := newTestSession(transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if transport.closes == 0 {
		t.Error("transport not closed on shutdown")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateRegistered, "REGISTERED"},
		{StateStreaming, "STREAMING"},
		{StateBackoff, "BACKOFF"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestNextBackoffDelay(t *testing.T) {
	max := 60 * time.Second
	tests := []struct {
		current time.Duration
		want    time.Duration
	}{
		{5 * time.Second, 7500 * time.Millisecond},
		{40 * time.Second, 60 * time.Second},
		{60 * time.Second, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := nextBackoffDelay(tt.current, max); got != tt.want {
			t.Errorf("nextBackoffDelay(%v) = %v, want %v", tt.current, got, tt.want)
		}
	}
}
