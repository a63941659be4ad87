package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/haasonsaas/callflow/internal/session"
	"github.com/haasonsaas/callflow/internal/telephony"
)

var phonePattern = regexp.MustCompile(`^\+\d{7,15}$`)

// phoneAddress extracts a phone number from a participant address, or ""
// when the address is not phone-shaped. Provider raw identifiers prefix
// phone participants with "4:".
func phoneAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "4:")
	if phonePattern.MatchString(addr) {
		return addr
	}
	return ""
}

// resolveTarget picks the participant to aim speech recognition at:
// a phone-shaped participant other than our own caller ID, then the
// patient's stored number, then "" for generic addressing.
func (o *Orchestrator) resolveTarget(sess *session.Session) string {
	for _, addr := range sess.Participants() {
		phone := phoneAddress(addr)
		if phone != "" && phone != o.callerID {
			return phone
		}
	}
	if p := sess.Patient(); p != nil && p.Phone != "" {
		return p.Phone
	}
	return ""
}

// startListening begins speech capture with a fixed-depth fallback ladder:
// resolved target with the full option set, then generic addressing, then a
// simplified option set. Each rung runs at most once; after the last rung
// the error is logged and the turn loop waits for the next event.
func (o *Orchestrator) startListening(ctx context.Context, sess *session.Session) {
	opts := telephony.DefaultRecognitionOptions(o.language)
	target := o.resolveTarget(sess)

	if target != "" {
		o.metrics.RecognitionAttempt("targeted")
		err := o.provider.StartRecognition(ctx, sess.CanonicalID, target, opts)
		if err == nil {
			return
		}
		o.logger.Warn(ctx, "targeted recognition failed, falling back to generic", "error", err)
	}

	o.metrics.RecognitionAttempt("generic")
	err := o.provider.StartRecognition(ctx, sess.CanonicalID, "", opts)
	if err == nil {
		return
	}
	o.logger.Warn(ctx, "generic recognition failed, falling back to simplified options", "error", err)

	o.metrics.RecognitionAttempt("simplified")
	if err := o.provider.StartRecognition(ctx, sess.CanonicalID, "", opts.Simplified()); err != nil {
		o.logger.Error(ctx, "recognition could not be started", "error", err)
	}
}
