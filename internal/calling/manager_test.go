package calling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubAudio struct {
	mu     sync.Mutex
	events []string
}

func (a *stubAudio) record(ev string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *stubAudio) has(ev string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == ev {
			return true
		}
	}
	return false
}

func (a *stubAudio) PlayRingtone()           { a.record("ringtone") }
func (a *stubAudio) PlayOutgoingRingtone()   { a.record("ringback") }
func (a *stubAudio) StopRingtone()           { a.record("stop_ringtone") }
func (a *stubAudio) PlayCallConnectedSound() { a.record("connected_sound") }
func (a *stubAudio) PlayCallEndedSound()     { a.record("ended_sound") }
func (a *stubAudio) EnableSpeaker()          { a.record("speaker_on") }
func (a *stubAudio) DisableSpeaker()         { a.record("speaker_off") }

type stubLog struct {
	mu      sync.Mutex
	entries []LogRecord
	err     error
}

func (l *stubLog) AddEntry(ctx context.Context, rec LogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, rec)
	return nil
}

func (l *stubLog) all() []LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

type stubContacts struct {
	name string
	err  error
}

func (c stubContacts) ContactByPhoneNumber(ctx context.Context, number string) (*ContactInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.name == "" {
		return nil, nil
	}
	return &ContactInfo{DisplayName: c.name}, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	started int
	stopped int
	err     error
}

func (r *stubRecorder) Start(ctx context.Context, call Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.started++
	return nil
}

func (r *stubRecorder) Stop(ctx context.Context, call Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

// stateRecorder collects every listener notification.
type stateRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *stateRecorder) listen(c *Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == nil {
		r.states = append(r.states, "idle")
		return
	}
	r.states = append(r.states, c.State.String())
}

func (r *stateRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.states))
	copy(out, r.states)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

type fixture struct {
	sim      *SimulatedTransport
	audio    *stubAudio
	log      *stubLog
	recorder *stubRecorder
	mgr      *Manager
}

func newFixture(t *testing.T, deps func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		sim:      NewSimulatedTransport(SimulatedConfig{RingDelay: 10 * time.Millisecond, ConnectDelay: 30 * time.Millisecond}, nil),
		audio:    &stubAudio{},
		log:      &stubLog{},
		recorder: &stubRecorder{},
	}
	if err := f.sim.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize transport: %v", err)
	}
	d := Deps{Transport: f.sim, Audio: f.audio, CallLog: f.log, Recorder: f.recorder}
	if deps != nil {
		deps(&d)
	}
	mgr, err := New(Config{RingTimeout: 80 * time.Millisecond, GraceDelay: 20 * time.Millisecond}, d, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	f.mgr = mgr
	return f
}

func (f *fixture) connected(t *testing.T) {
	t.Helper()
	if err := f.mgr.Initiate(context.Background(), "+15551234567", ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		c := f.mgr.Current()
		return c != nil && c.State == StateConnected
	})
}

func TestNewRequiresCollaborators(t *testing.T) {
	sim := NewSimulatedTransport(SimulatedConfig{}, nil)
	cases := []struct {
		name string
		deps Deps
	}{
		{"missing transport", Deps{Audio: &stubAudio{}, CallLog: &stubLog{}}},
		{"missing audio", Deps{Transport: sim, CallLog: &stubLog{}}},
		{"missing call log", Deps{Transport: sim, Audio: &stubAudio{}}},
	}
	for _, c := range cases {
		if _, err := New(Config{}, c.deps, nil); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestInitiateProgressesToConnected(t *testing.T) {
	f := newFixture(t, nil)
	rec := &stateRecorder{}
	f.mgr.AddListener(rec.listen)

	if err := f.mgr.Initiate(context.Background(), "+15551234567", ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	c := f.mgr.Current()
	if c == nil || c.PhoneNumber != "+15551234567" {
		t.Fatalf("unexpected current call: %+v", c)
	}
	if c.Direction != DirectionOutgoing {
		t.Fatalf("expected outgoing, got %v", c.Direction)
	}

	waitFor(t, time.Second, func() bool {
		cur := f.mgr.Current()
		return cur != nil && cur.State == StateConnected
	})

	// dialing -> ringing -> connected, in order.
	var order []string
	for _, s := range rec.seen() {
		if len(order) == 0 || order[len(order)-1] != s {
			order = append(order, s)
		}
	}
	want := []string{"dialing", "ringing", "connected"}
	if len(order) < len(want) {
		t.Fatalf("state sequence too short: %v", order)
	}
	for i, s := range want {
		if order[i] != s {
			t.Fatalf("state sequence %v, want prefix %v", order, want)
		}
	}

	if !f.audio.has("ringback") {
		t.Error("expected outgoing ringback")
	}
	if !f.audio.has("connected_sound") {
		t.Error("expected connected sound")
	}
	if cur := f.mgr.Current(); cur.SID == "" {
		t.Error("expected transport SID on confirmed call")
	}
}

func TestInitiateWhileCallInProgress(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	if err := f.mgr.Initiate(context.Background(), "+15557654321", ""); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("expected ErrCallInProgress, got %v", err)
	}

	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	// After the grace delay the slot frees and a new call may start.
	waitFor(t, time.Second, func() bool { return f.mgr.Current() == nil })
	if err := f.mgr.Initiate(context.Background(), "+15557654321", ""); err != nil {
		t.Fatalf("initiate after clear: %v", err)
	}
}

func TestAcceptWithoutIncomingCall(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.mgr.Accept(context.Background()); !errors.Is(err, ErrNoActiveInvite) {
		t.Fatalf("expected ErrNoActiveInvite, got %v", err)
	}
	if err := f.mgr.Reject(context.Background()); !errors.Is(err, ErrNoActiveInvite) {
		t.Fatalf("expected ErrNoActiveInvite, got %v", err)
	}
}

func TestIncomingAcceptConnects(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SimulateIncomingCall("+15557654321", "Alice")

	waitFor(t, time.Second, func() bool {
		c := f.mgr.Current()
		return c != nil && c.State == StateRinging
	})
	c := f.mgr.Current()
	if c.Direction != DirectionIncoming || c.DisplayName != "Alice" {
		t.Fatalf("unexpected incoming call: %+v", c)
	}
	if !f.audio.has("ringtone") {
		t.Error("expected ringtone for incoming call")
	}

	if err := f.mgr.Accept(context.Background()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	c = f.mgr.Current()
	if c.State != StateConnected {
		t.Fatalf("expected connected, got %v", c.State)
	}
	if c.SID == "" {
		t.Error("expected SID after accept")
	}
	if !f.audio.has("stop_ringtone") || !f.audio.has("connected_sound") {
		t.Error("expected ringtone stop and connected sound")
	}
}

func TestRejectLogsMissedWithZeroDuration(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SimulateIncomingCall("+15557654321", "")
	waitFor(t, time.Second, func() bool { return f.mgr.Current() != nil })

	if err := f.mgr.Reject(context.Background()); err != nil {
		t.Fatalf("reject: %v", err)
	}

	entries := f.log.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Type != LogTypeMissed || entries[0].Duration != 0 {
		t.Fatalf("expected missed/0, got %s/%d", entries[0].Type, entries[0].Duration)
	}
	waitFor(t, time.Second, func() bool { return f.mgr.Current() == nil })
}

func TestAutoRejectAfterRingTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SimulateIncomingCall("+15557654321", "")
	waitFor(t, time.Second, func() bool { return f.mgr.Current() != nil })

	// Never accepted or rejected: the ring timeout fires the same missed
	// path as an explicit reject, and the slot empties shortly after.
	waitFor(t, time.Second, func() bool { return len(f.log.all()) == 1 })
	entries := f.log.all()
	if entries[0].Type != LogTypeMissed || entries[0].Duration != 0 {
		t.Fatalf("expected missed/0, got %s/%d", entries[0].Type, entries[0].Duration)
	}
	waitFor(t, time.Second, func() bool { return f.mgr.Current() == nil })
}

func TestStaleRingTimerDoesNotTouchNewerCall(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SimulateIncomingCall("+15557654321", "")
	waitFor(t, time.Second, func() bool { return f.mgr.Current() != nil })
	if err := f.mgr.Reject(context.Background()); err != nil {
		t.Fatalf("reject: %v", err)
	}
	waitFor(t, time.Second, func() bool { return f.mgr.Current() == nil })

	// A new call occupies the slot when the first call's ring timer fires.
	f.connected(t)
	time.Sleep(120 * time.Millisecond) // past the first call's ring timeout
	c := f.mgr.Current()
	if c == nil || c.State != StateConnected {
		t.Fatalf("stale timer must not touch the new call, got %+v", c)
	}
	if got := len(f.log.all()); got != 1 {
		t.Fatalf("expected only the first call's missed entry, got %d entries", got)
	}
}

func TestEndMidRingIncomingLogsMissed(t *testing.T) {
	f := newFixture(t, nil)
	f.sim.SimulateIncomingCall("+15557654321", "")
	waitFor(t, time.Second, func() bool { return f.mgr.Current() != nil })

	// Hanging up on a never-answered incoming call is a decline, not an
	// answered incoming call.
	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	entries := f.log.all()
	if len(entries) != 1 || entries[0].Type != LogTypeMissed || entries[0].Duration != 0 {
		t.Fatalf("expected missed/0 entry, got %+v", entries)
	}
}

func TestEndConnectedLogsDirectionAndDuration(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	start := f.mgr.Current().StartedAt
	f.mgr.mu.Lock()
	f.mgr.now = func() time.Time { return start.Add(5 * time.Second) }
	f.mgr.mu.Unlock()

	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	entries := f.log.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != LogTypeOutgoing {
		t.Errorf("expected outgoing, got %s", entries[0].Type)
	}
	if entries[0].Duration != 5 {
		t.Errorf("expected duration 5, got %d", entries[0].Duration)
	}
	if !f.audio.has("ended_sound") {
		t.Error("expected ended sound")
	}
}

func TestEndWhenIdleIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatalf("end on idle: %v", err)
	}
	if got := len(f.log.all()); got != 0 {
		t.Fatalf("expected no log entries, got %d", got)
	}
}

func TestRemoteDisconnectEndsCall(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	f.sim.DropCall(nil)
	waitFor(t, time.Second, func() bool {
		c := f.mgr.Current()
		return c == nil || c.State == StateEnded
	})
	waitFor(t, time.Second, func() bool { return len(f.log.all()) == 1 })
	if got := f.log.all()[0].Type; got != LogTypeOutgoing {
		t.Fatalf("expected outgoing entry, got %s", got)
	}
}

func TestToggleMuteTwiceReturnsToUnmuted(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	if err := f.mgr.ToggleMute(context.Background()); err != nil {
		t.Fatalf("mute: %v", err)
	}
	c := f.mgr.Current()
	if !c.Muted || c.State != StateConnected {
		t.Fatalf("expected muted connected call, got muted=%v state=%v", c.Muted, c.State)
	}

	if err := f.mgr.ToggleMute(context.Background()); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	c = f.mgr.Current()
	if c.Muted || c.State != StateConnected {
		t.Fatalf("expected unmuted connected call, got muted=%v state=%v", c.Muted, c.State)
	}
}

func TestToggleMuteRequiresConnectedCall(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.mgr.ToggleMute(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestToggleSpeakerRoutesAudio(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	f.mgr.ToggleSpeaker()
	if !f.mgr.Current().SpeakerOn || !f.audio.has("speaker_on") {
		t.Fatal("expected speaker enabled")
	}
	f.mgr.ToggleSpeaker()
	if f.mgr.Current().SpeakerOn || !f.audio.has("speaker_off") {
		t.Fatal("expected speaker disabled")
	}
}

type refusingTransport struct {
	*SimulatedTransport
	mu       sync.Mutex
	rejected []string
}

func (t *refusingTransport) RejectCall(ctx context.Context, invite *Invite) error {
	t.mu.Lock()
	t.rejected = append(t.rejected, invite.From)
	t.mu.Unlock()
	return t.SimulatedTransport.RejectCall(ctx, invite)
}

func (t *refusingTransport) rejectedFrom() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.rejected))
	copy(out, t.rejected)
	return out
}

func TestSecondIncomingCallIsRefused(t *testing.T) {
	f := newFixture(t, nil)
	rt := &refusingTransport{SimulatedTransport: f.sim}
	mgr, err := New(Config{RingTimeout: time.Second, GraceDelay: 20 * time.Millisecond},
		Deps{Transport: rt, Audio: f.audio, CallLog: f.log}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	rt.SimulateIncomingCall("+15551111111", "")
	waitFor(t, time.Second, func() bool { return mgr.Current() != nil })

	rt.SimulateIncomingCall("+15552222222", "")
	waitFor(t, time.Second, func() bool { return len(rt.rejectedFrom()) == 1 })

	c := mgr.Current()
	if c == nil || c.PhoneNumber != "+15551111111" {
		t.Fatalf("first call must keep the slot, got %+v", c)
	}
	if got := rt.rejectedFrom()[0]; got != "+15552222222" {
		t.Fatalf("expected second invite refused, got %s", got)
	}
}

type failingTransport struct {
	*SimulatedTransport
}

func (t *failingTransport) MakeCall(ctx context.Context, number string) (*Session, error) {
	return nil, errors.New("network unreachable")
}

func TestTransportFailureFailsCallWithoutLogEntry(t *testing.T) {
	sim := NewSimulatedTransport(SimulatedConfig{RingDelay: 10 * time.Millisecond, ConnectDelay: 30 * time.Millisecond}, nil)
	if err := sim.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	audio := &stubAudio{}
	log := &stubLog{}
	mgr, err := New(Config{RingTimeout: time.Second, GraceDelay: 20 * time.Millisecond},
		Deps{Transport: &failingTransport{SimulatedTransport: sim}, Audio: audio, CallLog: log}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := &stateRecorder{}
	mgr.AddListener(rec.listen)

	if err := mgr.Initiate(context.Background(), "+15551234567", ""); err == nil {
		t.Fatal("expected initiate error")
	}

	seen := rec.seen()
	if len(seen) == 0 || seen[len(seen)-1] != "failed" {
		t.Fatalf("expected failed state, saw %v", seen)
	}
	// A failed dial never occurred: no log entry, and the slot frees.
	if got := len(log.all()); got != 0 {
		t.Fatalf("expected no log entries, got %d", got)
	}
	waitFor(t, time.Second, func() bool { return mgr.Current() == nil })
}

func TestContactResolutionFillsDisplayName(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Contacts = stubContacts{name: "Bob"} })
	f.sim.SimulateIncomingCall("+15557654321", "")
	waitFor(t, time.Second, func() bool { return f.mgr.Current() != nil })
	if got := f.mgr.Current().DisplayName; got != "Bob" {
		t.Fatalf("expected resolved name Bob, got %q", got)
	}
}

func TestContactLookupFailureDoesNotAbortCall(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Contacts = stubContacts{err: errors.New("contacts offline")} })
	if err := f.mgr.Initiate(context.Background(), "+15551234567", ""); err != nil {
		t.Fatalf("initiate must survive contact failure: %v", err)
	}
	if got := f.mgr.Current().DisplayName; got != "" {
		t.Fatalf("expected empty display name, got %q", got)
	}
}

func TestCallLogFailureDoesNotBlockTransition(t *testing.T) {
	f := newFixture(t, nil)
	f.log.err = errors.New("disk full")
	f.connected(t)

	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatalf("end must swallow log failure: %v", err)
	}
	waitFor(t, time.Second, func() bool { return f.mgr.Current() == nil })
}

func TestRecordingToggle(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)

	if err := f.mgr.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	if !f.mgr.Current().Recording {
		t.Fatal("expected recording flag set")
	}
	if err := f.mgr.StopRecording(context.Background()); err != nil {
		t.Fatalf("stop recording: %v", err)
	}
	if f.mgr.Current().Recording {
		t.Fatal("expected recording flag cleared")
	}
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if f.recorder.started != 1 || f.recorder.stopped != 1 {
		t.Fatalf("expected 1 start / 1 stop, got %d/%d", f.recorder.started, f.recorder.stopped)
	}
}

func TestRecordingUnavailableWithoutRecorder(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Recorder = nil })
	f.connected(t)
	if err := f.mgr.StartRecording(context.Background()); !errors.Is(err, ErrRecordingUnavailable) {
		t.Fatalf("expected ErrRecordingUnavailable, got %v", err)
	}
}

func TestEndStopsActiveRecording(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)
	if err := f.mgr.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.End(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if f.recorder.stopped != 1 {
		t.Fatalf("expected recording stopped on end, got %d", f.recorder.stopped)
	}
}

func TestRemoveListener(t *testing.T) {
	f := newFixture(t, nil)
	rec := &stateRecorder{}
	id := f.mgr.AddListener(rec.listen)
	f.mgr.RemoveListener(id)

	if err := f.mgr.Initiate(context.Background(), "+15551234567", ""); err != nil {
		t.Fatal(err)
	}
	if got := len(rec.seen()); got != 0 {
		t.Fatalf("removed listener still notified %d times", got)
	}
}

func TestListenersReceiveSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	var got *Call
	var mu sync.Mutex
	f.mgr.AddListener(func(c *Call) {
		mu.Lock()
		defer mu.Unlock()
		got = c
	})
	if err := f.mgr.Initiate(context.Background(), "+15551234567", ""); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	snap := got
	mu.Unlock()
	if snap == nil {
		t.Fatal("listener not notified")
	}
	// Mutating the snapshot must not leak into the engine's call.
	snap.PhoneNumber = "tampered"
	if f.mgr.Current().PhoneNumber != "+15551234567" {
		t.Fatal("external mutation reached the live call")
	}
}

func TestDialedCallSequenceMatchesGetCurrent(t *testing.T) {
	f := newFixture(t, nil)
	f.connected(t)
	c := f.mgr.Current()
	if c.PhoneNumber != "+15551234567" {
		t.Fatalf("getCurrentCall number = %q", c.PhoneNumber)
	}
	if c.StartedAt.IsZero() {
		t.Fatal("expected start time set at creation")
	}
}
