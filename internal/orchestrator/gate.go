package orchestrator

import (
	"context"

	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/session"
)

// checkGate runs after every milestone update. TryBeginGreeting is the
// one-shot AND-barrier over the three milestones plus patient context; the
// check and the latch flip are a single critical section inside the session,
// so two interleaved handlers can never both schedule the greeting.
func (o *Orchestrator) checkGate(ctx context.Context, sess *session.Session) {
	if !sess.TryBeginGreeting() {
		return
	}
	o.metrics.GreetingsPlayed.Inc()
	o.logger.Info(ctx, "session ready, scheduling greeting", "delay", o.greetingDelay)

	// Short settle delay so the media channel is open before we speak.
	o.afterFunc(o.greetingDelay, func() {
		o.playGreeting(observability.WithCallID(context.Background(), sess.CanonicalID), sess)
	})
}

func (o *Orchestrator) playGreeting(ctx context.Context, sess *session.Session) {
	patient := sess.Patient()
	if patient == nil {
		// Patient context was present when the gate fired; it cannot be
		// detached, but guard anyway.
		sess.ResetGreeting()
		return
	}
	text := greetingLine(patient.Name)
	sess.AppendTurn(session.RoleAssistant, text, o.nowFunc())
	if err := o.provider.Play(ctx, sess.CanonicalID, text, labelGreeting); err != nil {
		// Roll the latch back so a later duplicate milestone event can
		// re-attempt the greeting. No retry is scheduled here.
		o.logger.Error(ctx, "greeting playback failed", "error", err)
		sess.ResetGreeting()
	}
}
