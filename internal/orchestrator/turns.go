package orchestrator

import (
	"context"
	"strings"

	"github.com/haasonsaas/callflow/internal/agent"
	"github.com/haasonsaas/callflow/internal/session"
	"github.com/haasonsaas/callflow/internal/telephony"
)

// handlePlayCompleted advances the turn loop based on the operation label we
// attached to the play command. greeting, reprompt and response all hand the
// floor back to the patient; final-response speaks the goodbye; goodbye
// terminates the call.
func (o *Orchestrator) handlePlayCompleted(ctx context.Context, sess *session.Session, label string) {
	switch label {
	case labelGreeting, labelReprompt, labelResponse:
		o.startListening(ctx, sess)

	case labelFinalResponse:
		sess.AppendTurn(session.RoleAssistant, goodbyeLine, o.nowFunc())
		if err := o.provider.Play(ctx, sess.CanonicalID, goodbyeLine, labelGoodbye); err != nil {
			o.logger.Error(ctx, "goodbye playback failed", "error", err)
		}

	case labelGoodbye:
		if err := o.provider.Hangup(ctx, sess.CanonicalID); err != nil {
			o.logger.Error(ctx, "hangup failed", "error", err)
		}

	default:
		o.logger.Debug(ctx, "playback completed with unknown label", "label", label)
	}
}

// handlePlayFailed logs and, for a failed greeting, rolls the latch back so
// a later duplicate milestone event can retry. A stuck call is acceptable;
// the reaper will collect it.
func (o *Orchestrator) handlePlayFailed(ctx context.Context, sess *session.Session, ev telephony.CallEvent) {
	o.logger.Error(ctx, "playback failed",
		"label", ev.Label,
		"code", ev.FailureCode,
		"detail", ev.FailureMessage,
	)
	if ev.Label == labelGreeting {
		sess.ResetGreeting()
	}
}

// handleRecognizeCompleted runs one conversational turn: empty speech gets a
// reprompt, real speech goes to the agent. The patient always hears a reply,
// a reprompt, or the fallback line; never silence.
func (o *Orchestrator) handleRecognizeCompleted(ctx context.Context, sess *session.Session, utterance string) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		o.speak(ctx, sess, repromptLine, labelReprompt)
		return
	}

	history := sess.History()
	sess.AppendTurn(session.RoleUser, utterance, o.nowFunc())
	o.logger.Info(ctx, "utterance recognized", "chars", len(utterance))

	reply, err := o.agent.GenerateReply(ctx, history, utterance)
	if err != nil {
		kind := agent.KindOf(err)
		o.metrics.AgentFailure(string(kind))
		o.logger.Error(ctx, "agent reply failed", "kind", string(kind), "error", err)
		o.speak(ctx, sess, fallbackLine, labelResponse)
		return
	}

	label := labelResponse
	if reply.Final {
		label = labelFinalResponse
	}
	o.speak(ctx, sess, reply.Text, label)
}

// handleRecognizeFailed converts a recognition failure into a spoken
// guidance line under the reprompt label, which re-enters listening when it
// finishes playing. Recognition failures are never fatal.
func (o *Orchestrator) handleRecognizeFailed(ctx context.Context, sess *session.Session, ev telephony.CallEvent) {
	o.logger.Warn(ctx, "recognition failed",
		"code", ev.FailureCode,
		"detail", ev.FailureMessage,
	)
	o.speak(ctx, sess, guidanceLine(ev.FailureCode), labelReprompt)
}

// speak appends the turn to the history before issuing the play command, so
// the agent always sees the full prior context on the next turn.
func (o *Orchestrator) speak(ctx context.Context, sess *session.Session, text, label string) {
	sess.AppendTurn(session.RoleAssistant, text, o.nowFunc())
	if err := o.provider.Play(ctx, sess.CanonicalID, text, label); err != nil {
		o.logger.Error(ctx, "playback failed to start", "label", label, "error", err)
	}
}
