// Package audio provides the playback side of call progress feedback. The
// daemon has no sound hardware of its own; this manager tracks what should be
// audible and exposes it for the frontend, logging every cue transition.
package audio

import (
	"sync"

	"go.uber.org/zap"
)

// Cue names reported by State.
const (
	CueNone     = ""
	CueRingtone = "ringtone"
	CueRingback = "ringback"
)

// Manager implements the engine's audio collaborator. Looping cues (ringtone,
// ringback) are tracked as state; one-shot cues are only logged.
type Manager struct {
	logger *zap.SugaredLogger

	mu        sync.Mutex
	cue       string
	speakerOn bool
}

func NewManager(logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{logger: logger}
}

// State reports the looping cue currently playing and the speaker routing.
func (m *Manager) State() (cue string, speakerOn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cue, m.speakerOn
}

func (m *Manager) PlayRingtone() {
	m.setCue(CueRingtone)
}

func (m *Manager) PlayOutgoingRingtone() {
	m.setCue(CueRingback)
}

func (m *Manager) StopRingtone() {
	m.setCue(CueNone)
}

func (m *Manager) PlayCallConnectedSound() {
	m.logger.Debug("audio cue: call connected")
}

func (m *Manager) PlayCallEndedSound() {
	m.logger.Debug("audio cue: call ended")
}

func (m *Manager) EnableSpeaker() {
	m.mu.Lock()
	m.speakerOn = true
	m.mu.Unlock()
	m.logger.Debug("audio routed to speaker")
}

func (m *Manager) DisableSpeaker() {
	m.mu.Lock()
	m.speakerOn = false
	m.mu.Unlock()
	m.logger.Debug("audio routed to earpiece")
}

func (m *Manager) setCue(cue string) {
	m.mu.Lock()
	prev := m.cue
	m.cue = cue
	m.mu.Unlock()
	if prev != cue {
		m.logger.Debugw("audio cue changed", "from", prev, "to", cue)
	}
}
