package calling

import "context"

// Session is an active call at the transport, distinct from the engine's own
// Call value.
type Session struct {
	SID string
}

// Invite is an incoming-call offer from the transport. The Manager accepts or
// rejects it; it is never exposed outside the engine.
type Invite struct {
	ID     string
	From   string
	To     string
	Params map[string]string
}

// AudioDevice describes a routable audio output at the transport.
type AudioDevice struct {
	Name string `json:"name"`
	Type string `json:"type"` // builtin, speaker, bluetooth, ...
}

// CallStats carries transport-reported call quality numbers.
type CallStats struct {
	AudioLevel int `json:"audio_level"`
	JitterMs   int `json:"jitter_ms"`
	RTTMs      int `json:"rtt_ms"`
}

// Event is the closed set of transport notifications. The compiler cannot be
// tricked by a typo'd event name: every variant is a concrete type and the
// Manager switches over all of them.
type Event interface {
	isEvent()
}

// IncomingCallEvent announces a new invite from the network.
type IncomingCallEvent struct {
	From        string
	DisplayName string
	Invite      *Invite
}

// RingingEvent reports that an outgoing call is ringing at the remote end.
type RingingEvent struct {
	SID string
}

// ConnectedEvent reports that the session is established and media flows.
type ConnectedEvent struct {
	SID string
}

// DisconnectedEvent reports that the session ended; Err is non-nil when the
// transport attributes the disconnect to an error.
type DisconnectedEvent struct {
	SID string
	Err error
}

// ConnectFailureEvent reports that an established or connecting session
// failed mid-call. The engine treats it like a disconnect.
type ConnectFailureEvent struct {
	SID string
	Err error
}

func (IncomingCallEvent) isEvent()   {}
func (RingingEvent) isEvent()        {}
func (ConnectedEvent) isEvent()      {}
func (DisconnectedEvent) isEvent()   {}
func (ConnectFailureEvent) isEvent() {}

// EventHandler receives transport events. Handlers must be safe to call from
// the transport's own goroutines.
type EventHandler func(Event)

// Transport abstracts the telephony backend that carries signaling and media.
// At most one Session may be active per transport instance; MakeCall while a
// session exists fails with ErrSessionBusy. Failures are returned to the
// caller, never swallowed, so the engine can transition accordingly.
type Transport interface {
	Initialize(ctx context.Context) error
	RefreshAccessToken(ctx context.Context, identity string) error

	MakeCall(ctx context.Context, number string) (*Session, error)
	AcceptCall(ctx context.Context, invite *Invite) (*Session, error)
	RejectCall(ctx context.Context, invite *Invite) error
	EndCall(ctx context.Context) error

	// ToggleMute and ToggleHold return the new state as reported by the
	// backend. The returned boolean is authoritative, also in simulation.
	ToggleMute(ctx context.Context) (bool, error)
	ToggleHold(ctx context.Context) (bool, error)
	SendDigits(ctx context.Context, digits string) error

	CallInProgress() bool
	CallSID() string
	CallState() string
	CallMuted() bool
	CallOnHold() bool

	AudioDevices(ctx context.Context) ([]AudioDevice, error)
	SelectAudioDevice(ctx context.Context, device AudioDevice) error
	CallStats(ctx context.Context) (*CallStats, error)

	Subscribe(h EventHandler)
	Unsubscribe()
	Cleanup(ctx context.Context) error
}
