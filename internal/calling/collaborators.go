package calling

import (
	"context"
	"time"
)

// Call log entry types.
const (
	LogTypeIncoming = "incoming"
	LogTypeOutgoing = "outgoing"
	LogTypeMissed   = "missed"
)

// LogRecord is one finished call as handed to the call log.
type LogRecord struct {
	PhoneNumber string
	DisplayName string
	Timestamp   time.Time
	Duration    int // seconds
	Type        string
}

// CallLog persists finished calls. The engine treats it as fire-and-forget:
// a write failure never blocks a call transition.
type CallLog interface {
	AddEntry(ctx context.Context, rec LogRecord) error
}

// ContactInfo is the resolved identity of a counterparty number.
type ContactInfo struct {
	DisplayName string
}

// ContactsResolver resolves a dialable number to a display name. A lookup
// failure only skips name resolution, it never aborts call handling.
// Implementations return (nil, nil) when no contact matches.
type ContactsResolver interface {
	ContactByPhoneNumber(ctx context.Context, number string) (*ContactInfo, error)
}

// AudioManager plays call progress feedback and routes output. All methods
// are fire-and-forget; implementations log their own failures.
type AudioManager interface {
	PlayRingtone()
	PlayOutgoingRingtone()
	StopRingtone()
	PlayCallConnectedSound()
	PlayCallEndedSound()
	EnableSpeaker()
	DisableSpeaker()
}

// Recorder starts and stops call recording. Optional collaborator.
type Recorder interface {
	Start(ctx context.Context, call Call) error
	Stop(ctx context.Context, call Call) error
}
