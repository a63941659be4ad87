package orchestrator

import (
	"context"

	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/session"
	"github.com/haasonsaas/callflow/internal/telephony"
)

// HandleEvent routes one normalized webhook event. Events with no call
// identifier, unknown kinds, and callbacks for already-reaped sessions are
// all silent no-ops; nothing here returns an error to the webhook response.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev telephony.CallEvent) {
	canonical := o.store.Normalize(ev.RawCallID)
	if canonical == "" {
		o.logger.Debug(ctx, "event without call identifier dropped", "kind", string(ev.Kind))
		return
	}
	ctx = observability.WithCallID(ctx, canonical)
	o.metrics.EventProcessed(string(ev.Kind))

	switch ev.Kind {
	case telephony.EventCallConnected:
		o.handleMilestone(ctx, canonical, func(sess *session.Session) bool {
			if sess.MarkConnected() {
				sess.SetStatus(session.StatusConnected)
				return true
			}
			return false
		})

	case telephony.EventCallStarted:
		o.handleMilestone(ctx, canonical, func(sess *session.Session) bool {
			if sess.MarkStarted() {
				sess.SetStatus(session.StatusStarted)
				return true
			}
			return false
		})

	case telephony.EventParticipantAdded, telephony.EventParticipantsUpdated:
		o.handleParticipants(ctx, canonical, ev.Participants)

	case telephony.EventPlayStarted:
		o.logger.Debug(ctx, "playback started", "label", ev.Label)

	case telephony.EventPlayCompleted:
		if sess, ok := o.store.Lookup(canonical); ok {
			o.handlePlayCompleted(ctx, sess, ev.Label)
		}

	case telephony.EventPlayFailed:
		if sess, ok := o.store.Lookup(canonical); ok {
			o.handlePlayFailed(ctx, sess, ev)
		}

	case telephony.EventRecognizeCompleted:
		if sess, ok := o.store.Lookup(canonical); ok {
			o.handleRecognizeCompleted(ctx, sess, ev.Utterance)
		}

	case telephony.EventRecognizeFailed:
		if sess, ok := o.store.Lookup(canonical); ok {
			o.handleRecognizeFailed(ctx, sess, ev)
		}

	case telephony.EventCallEnded:
		o.handleCallEnded(ctx, canonical)

	default:
		o.logger.Debug(ctx, "unknown event kind ignored", "kind", string(ev.Kind))
	}
}

// handleMilestone applies one milestone mutation and re-checks the greeting
// gate. Sessions are created lazily here: milestones can arrive before the
// call placement path seeded a session, or for calls placed by another
// instance.
func (o *Orchestrator) handleMilestone(ctx context.Context, canonical string, mark func(*session.Session) bool) {
	sess, err := o.store.GetOrCreate(canonical)
	if err != nil {
		return
	}
	if mark(sess) {
		o.logger.Debug(ctx, "milestone recorded", "status", string(sess.Status()))
	}
	o.checkGate(ctx, sess)
}

func (o *Orchestrator) handleParticipants(ctx context.Context, canonical string, participants []string) {
	sess, err := o.store.GetOrCreate(canonical)
	if err != nil {
		return
	}
	if len(participants) == 0 {
		sess.MarkParticipantAdded()
	}
	for _, addr := range participants {
		sess.AddParticipant(addr)
	}
	o.ensurePatient(ctx, sess)
	o.checkGate(ctx, sess)
}

// ensurePatient backfills patient context on lazily created sessions by
// matching a phone-shaped participant against the records store.
func (o *Orchestrator) ensurePatient(ctx context.Context, sess *session.Session) {
	if sess.Patient() != nil {
		return
	}
	for _, addr := range sess.Participants() {
		phone := phoneAddress(addr)
		if phone == "" || phone == o.callerID {
			continue
		}
		patient, err := o.records.PatientByPhone(ctx, phone)
		if err != nil {
			o.logger.Error(ctx, "patient lookup failed", "error", err)
			return
		}
		if patient != nil {
			sess.SetPatient(patient)
			o.logger.Info(ctx, "patient context attached", "patient_id", patient.ID)
			return
		}
	}
}

// handleCallEnded persists the transcript before removal; removal is
// destructive and drops the aliases with it.
func (o *Orchestrator) handleCallEnded(ctx context.Context, canonical string) {
	sess, ok := o.store.Lookup(canonical)
	if !ok {
		return
	}
	sess.SetStatus(session.StatusEnded)
	o.persistOutcome(ctx, sess, "completed")
	o.store.Remove(canonical)
	o.metrics.CallEnded("completed", o.nowFunc().Sub(sess.CreatedAt).Seconds())
	o.logger.Info(ctx, "call ended", "turns", len(sess.History()))
}
