// Package session drives the agent's connection to the coordinator: a
// reconnecting state machine that registers, streams heartbeats, answers
// pings, and backs off on transport failures.
//
// One session runs per agent process, on a single goroutine. Every blocking
// step (dial, receive wait, backoff sleep) honors the run context, so
// shutdown is a context cancel away and no partial heartbeat is sent after
// it begins.
package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftnet-io/drift-agent/internal/identity"
	"github.com/driftnet-io/drift-agent/internal/snapshot"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistered
	StateStreaming
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateRegistered:
		return "REGISTERED"
	case StateStreaming:
		return "STREAMING"
	case StateBackoff:
		return "BACKOFF"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// backoffFactor grows the reconnect delay on each consecutive failure.
// Bounded multiplicative, no jitter: deterministic and simple to test.
const backoffFactor = 1.5

// Config holds the session timing parameters.
type Config struct {
	// HeartbeatInterval is the streaming cadence (default: 5s)
	HeartbeatInterval time.Duration

	// AckTimeout bounds the wait for a registration ack (default: 5s)
	AckTimeout time.Duration

	// BackoffBase is the initial reconnect delay (default: 5s)
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay (default: 60s)
	BackoffMax time.Duration

	// LogFn is an optional callback for logging (if nil, output is dropped)
	LogFn func(level, msg string)
}

// Session is the per-connection state machine. Owned by a single goroutine;
// none of its methods are safe for concurrent use while Run is active.
type Session struct {
	cfg       Config
	id        *identity.Identity
	builder   *snapshot.Builder
	transport Transport
	clock     Clock

	state          State
	reconnectDelay time.Duration
	seq            uint64
	lastAckSeq     uint64
	heartbeats     uint64

	// pongLimiter absorbs a coordinator that floods pings; legitimate pings
	// are far below this rate
	pongLimiter *rate.Limiter
}

// Stats is an observability view of the session.
type Stats struct {
	State          State
	ReconnectDelay time.Duration
	LastAckSeq     uint64
	HeartbeatsSent uint64
}

// New creates a session over the given transport.
func New(cfg Config, id *identity.Identity, builder *snapshot.Builder, transport Transport) *Session {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 5 * time.Second
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 60 * time.Second
	}
	return &Session{
		cfg:            cfg,
		id:             id,
		builder:        builder,
		transport:      transport,
		clock:          realClock{},
		state:          StateDisconnected,
		reconnectDelay: cfg.BackoffBase,
		pongLimiter:    rate.NewLimiter(rate.Limit(1), 5),
	}
}

// WithClock overrides the clock. Intended for tests.
func (s *Session) WithClock(clock Clock) *Session {
	s.clock = clock
	return s
}

// Stats returns the current observability counters.
func (s *Session) Stats() Stats {
	return Stats{
		State:          s.state,
		ReconnectDelay: s.reconnectDelay,
		LastAckSeq:     s.lastAckSeq,
		HeartbeatsSent: s.heartbeats,
	}
}

// Run drives the state machine until ctx is cancelled. The agent runs
// indefinitely; the only exit is the shutdown signal, returned as ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	defer s.transport.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch s.state {
		case StateDisconnected:
			s.state = StateConnecting

		case StateConnecting:
			if err := s.transport.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log("warning", "connect failed: %v", err)
				s.state = StateBackoff
				continue
			}
			s.registerStep()

		case StateRegistered:
			if err := s.awaitRegistrationAck(); err != nil {
				s.failTransport(err)
				continue
			}
			s.state = StateStreaming

		case StateStreaming:
			if err := s.streamStep(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.failTransport(err)
			}

		case StateBackoff:
			delay := s.reconnectDelay
			s.reconnectDelay = nextBackoffDelay(s.reconnectDelay, s.cfg.BackoffMax)
			s.log("info", "reconnecting in %s", delay)
			if err := s.clock.Sleep(ctx, delay); err != nil {
				return err
			}
			s.state = StateConnecting
		}
	}
}

// registerStep builds a snapshot and sends the register message. The
// transition to REGISTERED resets the reconnect delay; registration itself
// is fire-and-forget, with the ack awaited (best-effort) in the next state.
func (s *Session) registerStep() {
	snap := s.builder.Build()
	if err := s.transport.Send(NewRegisterMessage(s.id, snap)); err != nil {
		s.failTransport(err)
		return
	}
	s.log("info", "registered as %s", s.id.DeviceID)
	s.state = StateRegistered
	s.reconnectDelay = s.cfg.BackoffBase
}

// awaitRegistrationAck waits up to AckTimeout for a registration_ack. A
// timeout is logged and ignored — the coordinator's silence is not fatal,
// streaming begins regardless. Only a transport error is returned.
func (s *Session) awaitRegistrationAck() error {
	deadline := s.clock.Now().Add(s.cfg.AckTimeout)
	for {
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			s.log("warning", "no registration ack within %s, streaming anyway", s.cfg.AckTimeout)
			return nil
		}
		msg, err := s.transport.Receive(remaining)
		if err == ErrReceiveTimeout {
			s.log("warning", "no registration ack within %s, streaming anyway", s.cfg.AckTimeout)
			return nil
		}
		if err != nil {
			return err
		}
		switch msg.Type {
		case MessageTypeRegistrationAck:
			s.log("info", "registration acknowledged")
			return nil
		case MessageTypePing:
			if err := s.replyPong(); err != nil {
				return err
			}
		default:
			// Unknown or malformed payloads are ignored
		}
	}
}

// streamStep performs one heartbeat cadence tick: build a fresh snapshot,
// send it, then service inbound messages until the next tick is due.
func (s *Session) streamStep(ctx context.Context) error {
	// No partial heartbeat after shutdown begins
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.builder.Build()
	s.seq++
	if err := s.transport.Send(NewHeartbeatMessage(s.id.DeviceID, s.seq, snap)); err != nil {
		return err
	}
	s.heartbeats++

	deadline := s.clock.Now().Add(s.cfg.HeartbeatInterval)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := deadline.Sub(s.clock.Now())
		if remaining <= 0 {
			return nil
		}
		msg, err := s.transport.Receive(remaining)
		if err == ErrReceiveTimeout {
			// A quiet wire is not an error; proceed to the next tick
			return nil
		}
		if err != nil {
			return err
		}
		switch msg.Type {
		case MessageTypeHeartbeatAck:
			// Observability only; no behavioral effect
			if msg.Seq != 0 {
				s.lastAckSeq = msg.Seq
			} else {
				s.lastAckSeq = s.seq
			}
		case MessageTypePing:
			if err := s.replyPong(); err != nil {
				return err
			}
		case MessageTypeRegistrationAck:
			// Late ack; nothing left to do with it
		default:
			// Unknown or malformed payloads are ignored
		}
	}
}

// replyPong answers a coordinator ping. The rate limiter drops excess pings
// rather than letting a misbehaving coordinator turn the agent into a pong
// firehose.
func (s *Session) replyPong() error {
	if !s.pongLimiter.Allow() {
		s.log("warning", "dropping ping: pong rate limit exceeded")
		return nil
	}
	return s.transport.Send(NewPongMessage(s.id.DeviceID))
}

// failTransport records a transport failure and moves to BACKOFF.
func (s *Session) failTransport(err error) {
	s.log("warning", "transport failure: %v", err)
	s.transport.Close()
	s.state = StateBackoff
}

// nextBackoffDelay applies the bounded multiplicative backoff policy.
func nextBackoffDelay(current, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffFactor)
	if next > max {
		return max
	}
	return next
}

func (s *Session) log(level, format string, args ...any) {
	if s.cfg.LogFn != nil {
		s.cfg.LogFn(level, fmt.Sprintf(format, args...))
	}
}
