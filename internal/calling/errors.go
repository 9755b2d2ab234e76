package calling

import "errors"

var (
	// ErrCallInProgress is returned by Initiate while a call is current.
	ErrCallInProgress = errors.New("another call is already in progress")

	// ErrNoActiveInvite is returned by Accept/Reject when no ringing
	// incoming call exists.
	ErrNoActiveInvite = errors.New("no incoming call to accept or reject")

	// ErrNotConnected is returned by operations that require an
	// established call (DTMF, recording).
	ErrNotConnected = errors.New("no connected call")

	// ErrRecordingUnavailable is returned when no recorder is configured.
	ErrRecordingUnavailable = errors.New("call recording is not available")

	// ErrSessionBusy is returned by a Transport when a session is already
	// active.
	ErrSessionBusy = errors.New("transport session already active")

	// ErrNoActiveSession is returned by Transport operations that need an
	// active session.
	ErrNoActiveSession = errors.New("no active transport session")

	// ErrNotInitialized is returned by a Transport used before Initialize.
	ErrNotInitialized = errors.New("transport not initialized")
)
