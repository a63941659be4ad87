// Package orchestrator drives scripted outbound phone conversations. It
// reacts to normalized telephony events, gates the opening greeting on the
// call becoming fully ready, runs the speak/listen turn loop against the
// conversational agent, and hands finished transcripts to the records store
// before tearing the session down.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/callflow/internal/agent"
	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/records"
	"github.com/haasonsaas/callflow/internal/session"
	"github.com/haasonsaas/callflow/internal/telephony"
)

// ErrUnknownPatient is returned when an outbound call is requested for a
// phone number with no patient record.
var ErrUnknownPatient = errors.New("orchestrator: no patient record for phone number")

// DefaultGreetingDelay is the settle pause between the readiness gate firing
// and the greeting being spoken, giving the media channel time to open.
const DefaultGreetingDelay = 500 * time.Millisecond

// Config wires the orchestrator's collaborators.
type Config struct {
	Provider telephony.Provider
	Agent    agent.Agent
	Records  records.Store
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	// CallerID is the outbound caller phone number.
	CallerID string

	// Language for speech recognition. Default: en-US.
	Language string

	// SessionTTL overrides the session store's expiry window.
	SessionTTL time.Duration

	// GreetingDelay overrides DefaultGreetingDelay.
	GreetingDelay time.Duration
}

// Orchestrator is the webhook-driven call conductor.
type Orchestrator struct {
	store    *session.Store
	provider telephony.Provider
	agent    agent.Agent
	records  records.Store
	logger   *observability.Logger
	metrics  *observability.Metrics

	callerID      string
	language      string
	greetingDelay time.Duration

	nowFunc   func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

// New creates an orchestrator and its session store.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("orchestrator: telephony provider is required")
	}
	if cfg.Agent == nil {
		return nil, errors.New("orchestrator: agent is required")
	}
	if cfg.Records == nil {
		return nil, errors.New("orchestrator: records store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewTestLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics()
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.GreetingDelay == 0 {
		cfg.GreetingDelay = DefaultGreetingDelay
	}

	o := &Orchestrator{
		provider:      cfg.Provider,
		agent:         cfg.Agent,
		records:       cfg.Records,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		callerID:      cfg.CallerID,
		language:      cfg.Language,
		greetingDelay: cfg.GreetingDelay,
		nowFunc:       time.Now,
		afterFunc:     time.AfterFunc,
	}
	o.store = session.NewStore(session.StoreConfig{
		TTL:     cfg.SessionTTL,
		OnEvict: o.onExpired,
	})
	return o, nil
}

// Store exposes the session store for status endpoints.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// PlaceCall looks up the patient for a phone number, places the outbound
// call, and seeds the session eagerly with patient context so the greeting
// gate can open as soon as the call milestones arrive.
func (o *Orchestrator) PlaceCall(ctx context.Context, phone string) (string, error) {
	patient, err := o.records.PatientByPhone(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("orchestrator: patient lookup: %w", err)
	}
	if patient == nil {
		return "", ErrUnknownPatient
	}

	callID, err := o.provider.PlaceCall(ctx, patient.Phone, o.callerID)
	if err != nil {
		return "", fmt.Errorf("orchestrator: place call: %w", err)
	}

	canonical := o.store.Normalize(callID)
	sess, err := o.store.GetOrCreate(canonical)
	if err != nil {
		return "", err
	}
	sess.SetPatient(patient)
	o.metrics.CallStarted()

	ctx = observability.WithCallID(ctx, canonical)
	o.logger.Info(ctx, "outbound call placed", "patient_id", patient.ID)
	return callID, nil
}

// onExpired is the reaper handoff: the session is already removed, so all
// that is left is persisting what we have.
func (o *Orchestrator) onExpired(sess *session.Session) {
	ctx := observability.WithCallID(context.Background(), sess.CanonicalID)
	o.logger.Warn(ctx, "session expired before call ended")
	o.persistOutcome(ctx, sess, "expired")
	o.metrics.CallEnded("expired", o.nowFunc().Sub(sess.CreatedAt).Seconds())
}

func (o *Orchestrator) persistOutcome(ctx context.Context, sess *session.Session, reason string) {
	outcome := records.Outcome{
		CallID:     sess.CanonicalID,
		EndReason:  reason,
		Transcript: sess.History(),
		EndedAt:    o.nowFunc(),
	}
	if p := sess.Patient(); p != nil {
		outcome.PatientID = p.ID
	}
	if err := o.records.SaveOutcome(ctx, outcome); err != nil {
		o.logger.Error(ctx, "failed to persist call outcome", "error", err)
	}
}
