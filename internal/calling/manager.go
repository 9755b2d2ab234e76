package calling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes the engine's timers.
type Config struct {
	// RingTimeout is how long an unanswered incoming call rings before it
	// is auto-rejected and logged as missed.
	RingTimeout time.Duration
	// GraceDelay keeps a terminal call in the slot so the UI can render
	// the final state before the slot empties.
	GraceDelay time.Duration
}

const (
	defaultRingTimeout = 30 * time.Second
	defaultGraceDelay  = time.Second
)

// Deps are the engine's collaborators. Transport, Audio and CallLog are
// required; Contacts and Recorder may be nil.
type Deps struct {
	Transport Transport
	Audio     AudioManager
	CallLog   CallLog
	Contacts  ContactsResolver
	Recorder  Recorder
}

// Manager owns the single current-call slot and drives every state
// transition, whether triggered by the UI or by the transport. Transitions
// are serialized by the internal mutex; transport calls happen outside the
// lock, and any continuation re-checks that the call it was started for is
// still current before mutating anything.
type Manager struct {
	cfg    Config
	deps   Deps
	logger *zap.SugaredLogger

	mu        sync.Mutex
	current   *Call
	listeners []listenerEntry
	nextID    int

	now func() time.Time
}

type listenerEntry struct {
	id int
	fn func(*Call)
}

// New builds the engine. All required collaborators must be present; there
// is no late-binding setter path that could leave a half-wired machine.
func New(cfg Config, deps Deps, logger *zap.SugaredLogger) (*Manager, error) {
	if deps.Transport == nil {
		return nil, errors.New("calling: transport is required")
	}
	if deps.Audio == nil {
		return nil, errors.New("calling: audio manager is required")
	}
	if deps.CallLog == nil {
		return nil, errors.New("calling: call log is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = defaultRingTimeout
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = defaultGraceDelay
	}

	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
	deps.Transport.Subscribe(m.handleEvent)
	return m, nil
}

// Current returns a snapshot of the current call, or nil when idle.
func (m *Manager) Current() *Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.snapshot()
}

// AddListener registers a callback invoked with a snapshot (or nil) on every
// transition and externally visible flag change. Listeners run synchronously
// in registration order. The returned id removes the listener.
func (m *Manager) AddListener(fn func(*Call)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: m.nextID, fn: fn})
	return m.nextID
}

// RemoveListener drops a previously registered listener.
func (m *Manager) RemoveListener(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.listeners {
		if l.id == id {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// notifyLocked captures the snapshot and listener set under the lock and
// returns a closure that fires them after the lock is released, so listeners
// can call back into the engine.
func (m *Manager) notifyLocked() func() {
	snap := m.current.snapshot()
	ls := make([]listenerEntry, len(m.listeners))
	copy(ls, m.listeners)
	return func() {
		for _, l := range ls {
			l.fn(snap)
		}
	}
}

// Initiate places an outgoing call. Fails with ErrCallInProgress while a
// call is current.
func (m *Manager) Initiate(ctx context.Context, number, displayName string) error {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	m.mu.Unlock()

	displayName = m.resolveDisplayName(ctx, number, displayName)

	m.mu.Lock()
	if m.current != nil {
		// An incoming call grabbed the slot during the contact lookup.
		m.mu.Unlock()
		return ErrCallInProgress
	}
	call := &Call{
		ID:          uuid.NewString(),
		PhoneNumber: number,
		DisplayName: displayName,
		State:       StateDialing,
		Direction:   DirectionOutgoing,
		StartedAt:   m.now(),
	}
	m.current = call
	id := call.ID
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.logger.Infow("initiating call", "call_id", id, "number", number)

	session, err := m.deps.Transport.MakeCall(ctx, number)
	if err != nil {
		m.failCall(id, fmt.Errorf("make call: %w", err))
		return fmt.Errorf("make call: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id || m.current.State.IsTerminal() {
		// The call was torn down while the transport was setting it up.
		m.mu.Unlock()
		m.logger.Warnw("call cleared during setup, disconnecting transport", "call_id", id)
		go func() { _ = m.deps.Transport.EndCall(context.Background()) }()
		return nil
	}
	m.current.session = session
	m.current.SID = session.SID
	m.mu.Unlock()
	return nil
}

// Accept answers the ringing incoming call. Fails with ErrNoActiveInvite
// when no ringing incoming call exists.
func (m *Manager) Accept(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.Direction != DirectionIncoming || c.State != StateRinging || c.invite == nil {
		m.mu.Unlock()
		return ErrNoActiveInvite
	}
	id := c.ID
	invite := c.invite
	m.mu.Unlock()

	session, err := m.deps.Transport.AcceptCall(ctx, invite)
	if err != nil {
		m.failCall(id, fmt.Errorf("accept call: %w", err))
		return fmt.Errorf("accept call: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id || m.current.State != StateRinging {
		// Resolved elsewhere while we were accepting (remote hangup,
		// auto-reject). Don't keep the transport session around.
		m.mu.Unlock()
		go func() { _ = m.deps.Transport.EndCall(context.Background()) }()
		return nil
	}
	m.current.session = session
	m.current.SID = session.SID
	m.current.State = StateConnected
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.deps.Audio.StopRingtone()
	m.deps.Audio.PlayCallConnectedSound()
	m.logger.Infow("call accepted", "call_id", id, "sid", session.SID)
	return nil
}

// Reject declines the ringing incoming call and logs it as missed.
func (m *Manager) Reject(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.Direction != DirectionIncoming || c.State != StateRinging {
		m.mu.Unlock()
		return ErrNoActiveInvite
	}
	m.rejectLocked(ctx, "rejected")
	return nil
}

// rejectLocked finishes a ringing incoming call as missed. The caller holds
// the lock, which is released before side effects run.
func (m *Manager) rejectLocked(ctx context.Context, reason string) {
	c := m.current
	c.EndedAt = m.now()
	c.Duration = 0
	c.State = StateEnded
	invite := c.invite
	rec := LogRecord{
		PhoneNumber: c.PhoneNumber,
		DisplayName: c.DisplayName,
		Timestamp:   c.StartedAt,
		Duration:    0,
		Type:        LogTypeMissed,
	}
	id := c.ID
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	if invite != nil {
		if err := m.deps.Transport.RejectCall(ctx, invite); err != nil {
			m.logger.Warnw("transport reject failed", "call_id", id, "err", err)
		}
	}
	m.deps.Audio.StopRingtone()
	m.writeLog(ctx, id, rec)
	m.scheduleClear(id)
	m.logger.Infow("incoming call "+reason, "call_id", id, "number", rec.PhoneNumber)
}

// End terminates the current call from any non-terminal state. No-op when
// idle. A never-answered incoming call is logged as missed, not as an
// answered incoming call.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State.IsTerminal() {
		m.mu.Unlock()
		return nil
	}
	if c.Direction == DirectionIncoming && c.State == StateRinging {
		m.rejectLocked(ctx, "declined")
		return nil
	}

	id := c.ID
	c.EndedAt = m.now()
	c.Duration = int(c.EndedAt.Sub(c.StartedAt) / time.Second)
	c.State = StateEnded
	wasRecording := c.Recording
	c.Recording = false
	hadSession := c.session != nil
	snap := *c
	rec := LogRecord{
		PhoneNumber: c.PhoneNumber,
		DisplayName: c.DisplayName,
		Timestamp:   c.StartedAt,
		Duration:    c.Duration,
		Type:        LogTypeOutgoing,
	}
	if c.Direction == DirectionIncoming {
		rec.Type = LogTypeIncoming
	}
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	if hadSession {
		if err := m.deps.Transport.EndCall(ctx); err != nil {
			m.logger.Warnw("transport disconnect failed", "call_id", id, "err", err)
		}
	}
	if wasRecording && m.deps.Recorder != nil {
		if err := m.deps.Recorder.Stop(ctx, snap); err != nil {
			m.logger.Warnw("stop recording failed", "call_id", id, "err", err)
		}
	}
	m.deps.Audio.StopRingtone()
	m.deps.Audio.PlayCallEndedSound()
	m.writeLog(ctx, id, rec)
	m.scheduleClear(id)
	m.logger.Infow("call ended", "call_id", id, "duration", rec.Duration, "type", rec.Type)
	return nil
}

// ToggleMute flips mute on the connected call. The transport's returned
// boolean is the new truth, not a locally flipped guess.
func (m *Manager) ToggleMute(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	id := c.ID
	m.mu.Unlock()

	muted, err := m.deps.Transport.ToggleMute(ctx)
	if err != nil {
		return fmt.Errorf("toggle mute: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return nil
	}
	m.current.Muted = muted
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()
	return nil
}

// ToggleHold flips hold on the connected call; the transport's boolean wins.
func (m *Manager) ToggleHold(ctx context.Context) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	id := c.ID
	m.mu.Unlock()

	onHold, err := m.deps.Transport.ToggleHold(ctx)
	if err != nil {
		return fmt.Errorf("toggle hold: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return nil
	}
	m.current.OnHold = onHold
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()
	return nil
}

// ToggleSpeaker flips the speaker flag and routes audio accordingly. Local
// flag only; no transport round trip and no state change.
func (m *Manager) ToggleSpeaker() {
	m.mu.Lock()
	c := m.current
	if c == nil {
		m.mu.Unlock()
		return
	}
	c.SpeakerOn = !c.SpeakerOn
	on := c.SpeakerOn
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	if on {
		m.deps.Audio.EnableSpeaker()
	} else {
		m.deps.Audio.DisableSpeaker()
	}
}

// SendDigits relays DTMF to the transport. Requires a connected call.
func (m *Manager) SendDigits(ctx context.Context, digits string) error {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.mu.Unlock()
	if err := m.deps.Transport.SendDigits(ctx, digits); err != nil {
		return fmt.Errorf("send digits: %w", err)
	}
	return nil
}

// StartRecording begins recording the connected call.
func (m *Manager) StartRecording(ctx context.Context) error {
	if m.deps.Recorder == nil {
		return ErrRecordingUnavailable
	}
	m.mu.Lock()
	c := m.current
	if c == nil || c.State != StateConnected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if c.Recording {
		m.mu.Unlock()
		return nil
	}
	id := c.ID
	snap := *c
	m.mu.Unlock()

	if err := m.deps.Recorder.Start(ctx, snap); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return nil
	}
	m.current.Recording = true
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()
	return nil
}

// StopRecording stops an active recording.
func (m *Manager) StopRecording(ctx context.Context) error {
	if m.deps.Recorder == nil {
		return ErrRecordingUnavailable
	}
	m.mu.Lock()
	c := m.current
	if c == nil || !c.Recording {
		m.mu.Unlock()
		return nil
	}
	id := c.ID
	snap := *c
	m.mu.Unlock()

	if err := m.deps.Recorder.Stop(ctx, snap); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}

	m.mu.Lock()
	if m.current == nil || m.current.ID != id {
		m.mu.Unlock()
		return nil
	}
	m.current.Recording = false
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()
	return nil
}

// Shutdown ends any active call and detaches from the transport.
func (m *Manager) Shutdown(ctx context.Context) {
	_ = m.End(ctx)
	m.deps.Transport.Unsubscribe()
}

// handleEvent is the single entry point for transport notifications.
func (m *Manager) handleEvent(ev Event) {
	switch ev := ev.(type) {
	case IncomingCallEvent:
		m.receiveIncoming(ev)
	case RingingEvent:
		m.remoteRinging(ev)
	case ConnectedEvent:
		m.remoteConnected(ev)
	case DisconnectedEvent:
		if ev.Err != nil {
			m.logger.Warnw("call disconnected with error", "sid", ev.SID, "err", ev.Err)
		}
		m.remoteDisconnected()
	case ConnectFailureEvent:
		// Mid-call failure resolves like a disconnect; the error detail
		// travels in the event, not in the Call.
		m.logger.Warnw("call connect failure", "sid", ev.SID, "err", ev.Err)
		m.remoteDisconnected()
	}
}

// receiveIncoming materializes an incoming call, or refuses the invite when
// a call is already current.
func (m *Manager) receiveIncoming(ev IncomingCallEvent) {
	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		m.logger.Infow("refusing incoming call, another call in progress", "from", ev.From)
		if ev.Invite != nil {
			go func() {
				if err := m.deps.Transport.RejectCall(context.Background(), ev.Invite); err != nil {
					m.logger.Warnw("refuse invite failed", "from", ev.From, "err", err)
				}
			}()
		}
		return
	}
	m.mu.Unlock()

	displayName := m.resolveDisplayName(context.Background(), ev.From, ev.DisplayName)

	m.mu.Lock()
	if m.current != nil {
		// Slot taken while resolving the contact name.
		m.mu.Unlock()
		if ev.Invite != nil {
			go func() { _ = m.deps.Transport.RejectCall(context.Background(), ev.Invite) }()
		}
		return
	}
	call := &Call{
		ID:          uuid.NewString(),
		PhoneNumber: ev.From,
		DisplayName: displayName,
		State:       StateRinging,
		Direction:   DirectionIncoming,
		StartedAt:   m.now(),
		invite:      ev.Invite,
	}
	m.current = call
	id := call.ID
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.deps.Audio.PlayRingtone()
	m.logger.Infow("incoming call", "call_id", id, "from", ev.From)

	// Auto-reject when nobody answers. The identity+state guard, not timer
	// cancellation, keeps a stale timer from touching a newer call that
	// reused the slot.
	time.AfterFunc(m.cfg.RingTimeout, func() {
		m.mu.Lock()
		if m.current == nil || m.current.ID != id || m.current.State != StateRinging {
			m.mu.Unlock()
			return
		}
		m.rejectLocked(context.Background(), "auto-rejected after ring timeout")
	})
}

func (m *Manager) remoteRinging(ev RingingEvent) {
	m.mu.Lock()
	c := m.current
	if c == nil || c.Direction != DirectionOutgoing || c.State != StateDialing {
		m.mu.Unlock()
		return
	}
	c.State = StateRinging
	if c.SID == "" {
		c.SID = ev.SID
	}
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.deps.Audio.PlayOutgoingRingtone()
}

func (m *Manager) remoteConnected(ev ConnectedEvent) {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State.IsTerminal() || c.State == StateConnected {
		m.mu.Unlock()
		return
	}
	c.State = StateConnected
	if c.SID == "" {
		c.SID = ev.SID
	}
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.deps.Audio.StopRingtone()
	m.deps.Audio.PlayCallConnectedSound()
}

func (m *Manager) remoteDisconnected() {
	m.mu.Lock()
	c := m.current
	if c == nil || c.State.IsTerminal() {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// Same terminal path as a local hangup, just triggered externally.
	_ = m.End(context.Background())
}

// failCall moves the identified call to StateFailed. Setup failures never
// produce a call log entry; the call "did not occur".
func (m *Manager) failCall(id string, cause error) {
	m.mu.Lock()
	c := m.current
	if c == nil || c.ID != id || c.State.IsTerminal() {
		m.mu.Unlock()
		return
	}
	c.EndedAt = m.now()
	c.State = StateFailed
	fire := m.notifyLocked()
	m.mu.Unlock()
	fire()

	m.deps.Audio.StopRingtone()
	m.scheduleClear(id)
	m.logger.Errorw("call failed", "call_id", id, "err", cause)
}

// scheduleClear empties the slot after the grace delay, guarded by identity
// so a newer call is never cleared by an older call's timer.
func (m *Manager) scheduleClear(id string) {
	time.AfterFunc(m.cfg.GraceDelay, func() {
		m.mu.Lock()
		if m.current == nil || m.current.ID != id || !m.current.State.IsTerminal() {
			m.mu.Unlock()
			return
		}
		m.current = nil
		fire := m.notifyLocked()
		m.mu.Unlock()
		fire()
	})
}

// writeLog issues the call log write. Failures are logged and swallowed; the
// entry is issued before the slot clears but its completion is not awaited
// beyond this call.
func (m *Manager) writeLog(ctx context.Context, id string, rec LogRecord) {
	if err := m.deps.CallLog.AddEntry(ctx, rec); err != nil {
		m.logger.Errorw("failed to log call", "call_id", id, "err", err)
	}
}

// resolveDisplayName fills in a missing display name from contacts,
// best-effort.
func (m *Manager) resolveDisplayName(ctx context.Context, number, displayName string) string {
	if displayName != "" || m.deps.Contacts == nil {
		return displayName
	}
	contact, err := m.deps.Contacts.ContactByPhoneNumber(ctx, number)
	if err != nil {
		m.logger.Warnw("contact lookup failed", "number", number, "err", err)
		return ""
	}
	if contact == nil {
		return ""
	}
	return contact.DisplayName
}
