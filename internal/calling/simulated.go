package calling

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SimulatedConfig tunes the fake network timings.
type SimulatedConfig struct {
	// RingDelay is how long after MakeCall the remote end starts ringing.
	RingDelay time.Duration
	// ConnectDelay is how long after MakeCall the call connects. Must be
	// larger than RingDelay to preserve the ringing -> connected contract.
	ConnectDelay time.Duration
}

// SimulatedTransport implements Transport without any network or SDK. It
// honors the same event contract a real backend would (ringing before
// connected, deterministic delays) so the engine's transition logic is
// backend-agnostic and testable. Mute and hold booleans are authoritative
// here exactly as they are on a real backend.
type SimulatedTransport struct {
	cfg    SimulatedConfig
	logger *zap.SugaredLogger

	mu          sync.Mutex
	initialized bool
	identity    string
	handler     EventHandler
	session     *Session
	muted       bool
	onHold      bool
}

// NewSimulatedTransport builds a simulated backend with the given timings.
func NewSimulatedTransport(cfg SimulatedConfig, logger *zap.SugaredLogger) *SimulatedTransport {
	if cfg.RingDelay <= 0 {
		cfg.RingDelay = time.Second
	}
	if cfg.ConnectDelay <= cfg.RingDelay {
		cfg.ConnectDelay = cfg.RingDelay * 3
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SimulatedTransport{cfg: cfg, logger: logger}
}

func (t *SimulatedTransport) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initialized = true
	t.logger.Info("simulated transport initialized")
	return nil
}

func (t *SimulatedTransport) RefreshAccessToken(ctx context.Context, identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if identity != "" {
		t.identity = identity
	}
	t.logger.Debugw("simulated token refresh", "identity", t.identity)
	return nil
}

func (t *SimulatedTransport) MakeCall(ctx context.Context, number string) (*Session, error) {
	t.mu.Lock()
	if !t.initialized {
		t.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if t.session != nil {
		t.mu.Unlock()
		return nil, ErrSessionBusy
	}
	session := &Session{SID: newSID()}
	t.session = session
	t.muted = false
	t.onHold = false
	t.mu.Unlock()

	t.logger.Infow("simulated outgoing call", "number", number, "sid", session.SID)

	// Deterministic call progression: ringing, then connected.
	sid := session.SID
	time.AfterFunc(t.cfg.RingDelay, func() {
		t.emitForSession(sid, RingingEvent{SID: sid})
	})
	time.AfterFunc(t.cfg.ConnectDelay, func() {
		t.emitForSession(sid, ConnectedEvent{SID: sid})
	})
	return session, nil
}

func (t *SimulatedTransport) AcceptCall(ctx context.Context, invite *Invite) (*Session, error) {
	if invite == nil {
		return nil, ErrNoActiveSession
	}
	t.mu.Lock()
	if !t.initialized {
		t.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if t.session != nil {
		t.mu.Unlock()
		return nil, ErrSessionBusy
	}
	session := &Session{SID: newSID()}
	t.session = session
	t.muted = false
	t.onHold = false
	t.mu.Unlock()

	t.logger.Infow("simulated call accepted", "from", invite.From, "sid", session.SID)
	return session, nil
}

func (t *SimulatedTransport) RejectCall(ctx context.Context, invite *Invite) error {
	if invite == nil {
		return ErrNoActiveSession
	}
	t.logger.Infow("simulated call rejected", "from", invite.From)
	return nil
}

func (t *SimulatedTransport) EndCall(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.logger.Infow("simulated call ended", "sid", t.session.SID)
	}
	t.session = nil
	t.muted = false
	t.onHold = false
	return nil
}

func (t *SimulatedTransport) ToggleMute(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return false, ErrNoActiveSession
	}
	t.muted = !t.muted
	return t.muted, nil
}

func (t *SimulatedTransport) ToggleHold(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return false, ErrNoActiveSession
	}
	t.onHold = !t.onHold
	return t.onHold, nil
}

func (t *SimulatedTransport) SendDigits(ctx context.Context, digits string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ErrNoActiveSession
	}
	t.logger.Debugw("simulated DTMF", "digits", digits)
	return nil
}

func (t *SimulatedTransport) CallInProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil
}

func (t *SimulatedTransport) CallSID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return t.session.SID
}

func (t *SimulatedTransport) CallState() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return "connected"
}

func (t *SimulatedTransport) CallMuted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil && t.muted
}

func (t *SimulatedTransport) CallOnHold() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil && t.onHold
}

func (t *SimulatedTransport) AudioDevices(ctx context.Context) ([]AudioDevice, error) {
	return []AudioDevice{
		{Name: "Earpiece", Type: "builtin"},
		{Name: "Speaker", Type: "speaker"},
	}, nil
}

func (t *SimulatedTransport) SelectAudioDevice(ctx context.Context, device AudioDevice) error {
	t.logger.Debugw("simulated audio device selected", "device", device.Name)
	return nil
}

func (t *SimulatedTransport) CallStats(ctx context.Context) (*CallStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNoActiveSession
	}
	return &CallStats{AudioLevel: -30, JitterMs: 5, RTTMs: 120}, nil
}

func (t *SimulatedTransport) Subscribe(h EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *SimulatedTransport) Unsubscribe() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = nil
}

func (t *SimulatedTransport) Cleanup(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = nil
	t.handler = nil
	t.initialized = false
	t.logger.Info("simulated transport cleaned up")
	return nil
}

// SimulateIncomingCall injects an incoming invite, as the push path would on
// a real backend. Development and test hook.
func (t *SimulatedTransport) SimulateIncomingCall(from, displayName string) {
	invite := &Invite{
		ID:   uuid.NewString(),
		From: from,
		To:   t.currentIdentity(),
	}
	t.emit(IncomingCallEvent{From: from, DisplayName: displayName, Invite: invite})
}

// DropCall simulates the remote party hanging up (or a transport error when
// err is non-nil). No-op without an active session.
func (t *SimulatedTransport) DropCall(err error) {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.muted = false
	t.onHold = false
	t.mu.Unlock()
	if session == nil {
		return
	}
	t.emit(DisconnectedEvent{SID: session.SID, Err: err})
}

func (t *SimulatedTransport) currentIdentity() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.identity
}

// emitForSession delivers an event only while the session it was scheduled
// for is still active, so stale timers from a finished call stay silent.
func (t *SimulatedTransport) emitForSession(sid string, ev Event) {
	t.mu.Lock()
	if t.session == nil || t.session.SID != sid {
		t.mu.Unlock()
		return
	}
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (t *SimulatedTransport) emit(ev Event) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func newSID() string {
	return "SIM" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:32]
}
