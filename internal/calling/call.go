// Package calling implements the call lifecycle engine: the Call entity, the
// state machine that owns the single active call, the transport abstraction
// over the telephony backend, and the contracts of the collaborators the
// engine drives (audio, call log, contacts, recording).
package calling

import (
	"fmt"
	"time"
)

// State is the primary lifecycle state of a call. Mute, hold and speaker are
// carried as flags on the Call, not as states; they are meaningful only while
// the call is connected. Idle is represented by the absence of a current call.
type State int

const (
	// StateDialing indicates an outgoing call before the remote end rings.
	StateDialing State = iota
	// StateRinging indicates an incoming call awaiting accept/reject, or an
	// outgoing call ringing at the remote end.
	StateRinging
	// StateConnected indicates media is flowing.
	StateConnected
	// StateEnded indicates the call finished normally or was rejected.
	StateEnded
	// StateFailed indicates call setup failed at the transport.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateRinging:
		return "ringing"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal reports whether the state is final for the call.
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateFailed
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Direction indicates whether the call was placed or received locally.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return fmt.Sprintf("unknown(%d)", d)
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Call is one telephony session as seen by this client. The Manager is the
// sole owner of the live value; everything outside the engine only ever sees
// snapshot copies with the transport handles stripped.
type Call struct {
	// ID is generated locally at creation; it is not the transport's
	// identifier, which arrives only once the transport confirms a session.
	ID string `json:"id"`
	// SID is the transport correlation id, empty until confirmed.
	SID         string    `json:"sid,omitempty"`
	PhoneNumber string    `json:"phone_number"`
	DisplayName string    `json:"display_name,omitempty"`
	State       State     `json:"state"`
	Direction   Direction `json:"direction"`
	StartedAt   time.Time `json:"started_at"`
	// EndedAt is set only on the terminal transition.
	EndedAt time.Time `json:"ended_at,omitzero"`
	// Duration is a whole-second snapshot taken at the terminal transition.
	Duration int `json:"duration"`

	Muted     bool `json:"muted"`
	OnHold    bool `json:"on_hold"`
	SpeakerOn bool `json:"speaker_on"`
	Recording bool `json:"recording"`

	// Transport handles, owned exclusively by the Manager.
	invite  *Invite
	session *Session
}

// snapshot returns an immutable copy safe to hand outside the engine.
func (c *Call) snapshot() *Call {
	if c == nil {
		return nil
	}
	cp := *c
	cp.invite = nil
	cp.session = nil
	return &cp
}
