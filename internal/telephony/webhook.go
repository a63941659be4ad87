package telephony

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseResult is the outcome of decoding one webhook delivery.
type ParseResult struct {
	// ValidationCode is set for the subscription handshake; the server
	// must answer with {"validationResponse": code} and nothing else.
	ValidationCode string

	// Events are the recognized call events, in delivery order. Events
	// with an unknown type or no usable identifier are dropped here.
	Events []CallEvent
}

// rawIdentifier is a provider participant identifier in either phone-number
// or raw form.
type rawIdentifier struct {
	RawID       string `json:"rawId"`
	PhoneNumber struct {
		Value string `json:"value"`
	} `json:"phoneNumber"`
}

func (id rawIdentifier) address() string {
	if id.PhoneNumber.Value != "" {
		return id.PhoneNumber.Value
	}
	return id.RawID
}

// rawEvent covers both delivery formats: flat grid-style events carrying
// eventType/data.validationCode, and call-automation events carrying
// type/callConnectionId/subject.
type rawEvent struct {
	Type             string `json:"type"`
	EventType        string `json:"eventType"`
	Subject          string `json:"subject"`
	CallConnectionID string `json:"callConnectionId"`
	Data             struct {
		ValidationCode   string        `json:"validationCode"`
		CallConnectionID string        `json:"callConnectionId"`
		ServerCallID     string        `json:"serverCallId"`
		OperationContext string        `json:"operationContext"`
		Participant      rawIdentifier `json:"participant"`
		Participants     []struct {
			Identifier rawIdentifier `json:"identifier"`
		} `json:"participants"`
		SpeechResult struct {
			Speech string `json:"speech"`
		} `json:"speechResult"`
		ResultInformation struct {
			Code    int    `json:"code"`
			SubCode int    `json:"subCode"`
			Message string `json:"message"`
		} `json:"resultInformation"`
	} `json:"data"`
}

// ParseBatch decodes a webhook body into normalized events. The body may be
// a JSON array or a single object. A decode failure is the only error: it
// maps to HTTP 400 upstream. Skipped events (unknown type, no identifier)
// are logged and never fail the batch.
func ParseBatch(body []byte, logger *slog.Logger) (*ParseResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var raws []rawEvent
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("telephony: decode event batch: %w", err)
		}
	} else {
		var one rawEvent
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("telephony: decode event: %w", err)
		}
		raws = []rawEvent{one}
	}

	result := &ParseResult{}
	for _, raw := range raws {
		eventType := raw.Type
		if eventType == "" {
			eventType = raw.EventType
		}

		if strings.HasSuffix(eventType, "SubscriptionValidationEvent") {
			result.ValidationCode = raw.Data.ValidationCode
			continue
		}

		kind, ok := eventKind(eventType)
		if !ok {
			logger.Debug("ignoring unknown webhook event", "type", eventType)
			continue
		}

		ev := CallEvent{
			ID:        uuid.New().String(),
			Kind:      kind,
			RawCallID: extractCallID(raw),
			Timestamp: time.Now(),
			Label:     raw.Data.OperationContext,
		}

		switch kind {
		case EventParticipantAdded:
			if addr := raw.Data.Participant.address(); addr != "" {
				ev.Participants = []string{addr}
			}
		case EventParticipantsUpdated:
			for _, p := range raw.Data.Participants {
				if addr := p.Identifier.address(); addr != "" {
					ev.Participants = append(ev.Participants, addr)
				}
			}
		case EventRecognizeCompleted:
			ev.Utterance = raw.Data.SpeechResult.Speech
		case EventRecognizeFailed, EventPlayFailed:
			ev.FailureCode = raw.Data.ResultInformation.SubCode
			ev.FailureMessage = raw.Data.ResultInformation.Message
		}

		result.Events = append(result.Events, ev)
	}
	return result, nil
}

// eventKind maps a wire event type (optionally namespaced with dotted
// prefixes) to a normalized kind.
func eventKind(wire string) (EventKind, bool) {
	if i := strings.LastIndex(wire, "."); i >= 0 {
		wire = wire[i+1:]
	}
	switch wire {
	case "CallConnected":
		return EventCallConnected, true
	case "CallStarted":
		return EventCallStarted, true
	case "CallParticipantAdded":
		return EventParticipantAdded, true
	case "ParticipantsUpdated":
		return EventParticipantsUpdated, true
	case "RecognizeCompleted":
		return EventRecognizeCompleted, true
	case "RecognizeFailed":
		return EventRecognizeFailed, true
	case "PlayStarted":
		return EventPlayStarted, true
	case "PlayCompleted":
		return EventPlayCompleted, true
	case "PlayFailed":
		return EventPlayFailed, true
	case "CallDisconnected", "CallEnded":
		return EventCallEnded, true
	}
	return "", false
}

// extractCallID finds the call identifier, checking the locations providers
// actually use: top-level callConnectionId, data.callConnectionId,
// data.serverCallId, then the subject string.
func extractCallID(raw rawEvent) string {
	if raw.CallConnectionID != "" {
		return raw.CallConnectionID
	}
	if raw.Data.CallConnectionID != "" {
		return raw.Data.CallConnectionID
	}
	if raw.Data.ServerCallID != "" {
		return raw.Data.ServerCallID
	}
	return callIDFromSubject(raw.Subject)
}

// callIDFromSubject parses identifiers out of subjects shaped like
// "call/{id}/startedBy/{participantId}".
func callIDFromSubject(subject string) string {
	if subject == "" {
		return ""
	}
	parts := strings.Split(subject, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "call" && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
