// Package notify is the local notification backend: a SQLite-backed
// scheduler for reminder tasks and a dispatcher that delivers due tasks
// to a sink (MQTT or the log).
package notify

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialized is returned by a second call to Init.
var ErrAlreadyInitialized = errors.New("notify: presentation already initialized")

// Presentation says how a delivered notification is shown.
type Presentation struct {
	ShowAlert bool `json:"show_alert"`
	PlaySound bool `json:"play_sound"`
	SetBadge  bool `json:"set_badge"`
}

// DefaultPresentation shows an alert and plays the sound.
var DefaultPresentation = Presentation{ShowAlert: true, PlaySound: true}

var (
	presentationMu   sync.RWMutex
	presentation     = DefaultPresentation
	presentationDone bool
)

// Init sets the process-wide presentation. It may be called once, at
// startup; later calls fail with ErrAlreadyInitialized.
func Init(p Presentation) error {
	presentationMu.Lock()
	defer presentationMu.Unlock()
	if presentationDone {
		return ErrAlreadyInitialized
	}
	presentation = p
	presentationDone = true
	return nil
}

// CurrentPresentation returns the configured presentation, or
// DefaultPresentation before Init.
func CurrentPresentation() Presentation {
	presentationMu.RLock()
	defer presentationMu.RUnlock()
	return presentation
}
