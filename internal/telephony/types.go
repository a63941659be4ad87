// Package telephony provides the call-automation provider integration:
// the outbound command interface (place, play, recognize, hang up) and the
// webhook codec that turns raw provider deliveries into normalized events.
package telephony

import (
	"context"
	"time"
)

// EventKind categorizes normalized call events.
type EventKind string

const (
	EventCallConnected        EventKind = "CallConnected"
	EventCallStarted          EventKind = "CallStarted"
	EventParticipantAdded     EventKind = "CallParticipantAdded"
	EventParticipantsUpdated  EventKind = "ParticipantsUpdated"
	EventRecognizeCompleted   EventKind = "RecognizeCompleted"
	EventRecognizeFailed      EventKind = "RecognizeFailed"
	EventPlayStarted          EventKind = "PlayStarted"
	EventPlayCompleted        EventKind = "PlayCompleted"
	EventPlayFailed           EventKind = "PlayFailed"
	EventCallEnded            EventKind = "CallEnded"
)

// CallEvent is one normalized webhook event. RawCallID is whichever call
// identifier the delivery carried; the session layer maps it to a canonical
// key.
type CallEvent struct {
	ID        string
	Kind      EventKind
	RawCallID string
	Timestamp time.Time

	// Participants carries the participant addresses for participant
	// events (one entry for CallParticipantAdded, the full roster for
	// ParticipantsUpdated).
	Participants []string

	// Utterance is the recognized speech for RecognizeCompleted.
	Utterance string

	// Label is the operation context echoed back on play/recognize
	// callbacks; the orchestrator chose it when issuing the command.
	Label string

	// FailureCode and FailureMessage describe RecognizeFailed/PlayFailed
	// outcomes.
	FailureCode    int
	FailureMessage string
}

// RecognitionOptions tunes a speech capture request.
type RecognitionOptions struct {
	Language       string
	InitialSilence time.Duration
	EndSilence     time.Duration
	Interim        bool
}

// DefaultRecognitionOptions is the full option set used on the first rung of
// the recognition ladder.
func DefaultRecognitionOptions(language string) RecognitionOptions {
	if language == "" {
		language = "en-US"
	}
	return RecognitionOptions{
		Language:       language,
		InitialSilence: 10 * time.Second,
		EndSilence:     1 * time.Second,
		Interim:        true,
	}
}

// Simplified returns the reduced option set for the final rung of the
// recognition ladder: no interim results, no end-silence tuning.
func (o RecognitionOptions) Simplified() RecognitionOptions {
	return RecognitionOptions{
		Language:       o.Language,
		InitialSilence: o.InitialSilence,
	}
}

// Provider issues commands to the call-automation service. Every method is
// asynchronous on the wire: completion arrives later as a webhook event.
type Provider interface {
	// PlaceCall starts an outbound call and returns the provider-assigned
	// call identifier, which seeds the session.
	PlaceCall(ctx context.Context, to, from string) (string, error)

	// Play speaks text on the call. The label is echoed back on the
	// PlayCompleted/PlayFailed callback.
	Play(ctx context.Context, callID, text, label string) error

	// StartRecognition begins speech capture. An empty target addresses
	// all participants generically.
	StartRecognition(ctx context.Context, callID, target string, opts RecognitionOptions) error

	// Hangup terminates the call for everyone.
	Hangup(ctx context.Context, callID string) error
}
