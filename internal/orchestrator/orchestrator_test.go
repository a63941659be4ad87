package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/callflow/internal/agent"
	"github.com/haasonsaas/callflow/internal/observability"
	"github.com/haasonsaas/callflow/internal/records"
	"github.com/haasonsaas/callflow/internal/session"
	"github.com/haasonsaas/callflow/internal/telephony"
)

type playCall struct {
	callID string
	text   string
	label  string
}

type recognizeCall struct {
	callID string
	target string
	opts   telephony.RecognitionOptions
}

type mockProvider struct {
	mu         sync.Mutex
	plays      []playCall
	recognizes []recognizeCall
	hangups    []string
	placed     []string

	playErrs      []error
	recognizeErrs []error
}

func (m *mockProvider) PlaceCall(_ context.Context, to, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, to)
	return fmt.Sprintf("call-%d", len(m.placed)), nil
}

func (m *mockProvider) Play(_ context.Context, callID, text, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.playErrs) > 0 {
		err := m.playErrs[0]
		m.playErrs = m.playErrs[1:]
		if err != nil {
			return err
		}
	}
	m.plays = append(m.plays, playCall{callID: callID, text: text, label: label})
	return nil
}

func (m *mockProvider) StartRecognition(_ context.Context, callID, target string, opts telephony.RecognitionOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recognizes = append(m.recognizes, recognizeCall{callID: callID, target: target, opts: opts})
	if len(m.recognizeErrs) > 0 {
		err := m.recognizeErrs[0]
		m.recognizeErrs = m.recognizeErrs[1:]
		return err
	}
	return nil
}

func (m *mockProvider) Hangup(_ context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hangups = append(m.hangups, callID)
	return nil
}

func (m *mockProvider) playsWithLabel(label string) []playCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []playCall
	for _, p := range m.plays {
		if p.label == label {
			out = append(out, p)
		}
	}
	return out
}

type mockAgent struct {
	mu      sync.Mutex
	calls   int
	history []session.Turn
	reply   agent.Reply
	err     error
}

func (m *mockAgent) GenerateReply(_ context.Context, history []session.Turn, _ string) (agent.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.history = history
	if m.err != nil {
		return agent.Reply{}, m.err
	}
	return m.reply, nil
}

type fixture struct {
	orch     *Orchestrator
	provider *mockProvider
	agent    *mockAgent
	records  *records.MemoryStore
}

const testPhone = "+15551234567"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := &mockProvider{}
	ag := &mockAgent{reply: agent.Reply{Text: "Sure, I can help with that."}}
	recs := records.NewMemoryStore()
	recs.AddPatient(&session.Patient{ID: "p1", Name: "Jordan", Phone: testPhone})

	orch, err := New(Config{
		Provider: provider,
		Agent:    ag,
		Records:  recs,
		Metrics:  observability.NewMetricsWithRegistry(prometheus.NewRegistry()),
		CallerID: "+15550000000",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Run the greeting settle delay synchronously.
	orch.afterFunc = func(_ time.Duration, fn func()) *time.Timer {
		fn()
		return time.NewTimer(time.Hour)
	}
	return &fixture{orch: orch, provider: provider, agent: ag, records: recs}
}

// place seeds a session with patient context and returns the call id.
func (f *fixture) place(t *testing.T) string {
	t.Helper()
	callID, err := f.orch.PlaceCall(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	return callID
}

func (f *fixture) deliver(kind telephony.EventKind, callID string) {
	ev := telephony.CallEvent{Kind: kind, RawCallID: callID}
	if kind == telephony.EventParticipantAdded {
		ev.Participants = []string{"4:" + testPhone}
	}
	f.orch.HandleEvent(context.Background(), ev)
}

var milestoneKinds = []telephony.EventKind{
	telephony.EventCallConnected,
	telephony.EventCallStarted,
	telephony.EventParticipantAdded,
}

func permutations(kinds []telephony.EventKind) [][]telephony.EventKind {
	if len(kinds) <= 1 {
		return [][]telephony.EventKind{kinds}
	}
	var out [][]telephony.EventKind
	for i, k := range kinds {
		rest := make([]telephony.EventKind, 0, len(kinds)-1)
		rest = append(rest, kinds[:i]...)
		rest = append(rest, kinds[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]telephony.EventKind{k}, p...))
		}
	}
	return out
}

func TestGreeting_FiresOnceForEveryOrdering(t *testing.T) {
	for _, order := range permutations(milestoneKinds) {
		t.Run(fmt.Sprintf("%v", order), func(t *testing.T) {
			f := newFixture(t)
			callID := f.place(t)
			for _, kind := range order {
				f.deliver(kind, callID)
			}

			greetings := f.provider.playsWithLabel(labelGreeting)
			if len(greetings) != 1 {
				t.Fatalf("got %d greetings, want exactly 1", len(greetings))
			}
			if greetings[0].text != greetingLine("Jordan") {
				t.Errorf("greeting text = %q", greetings[0].text)
			}
		})
	}
}

func TestGreeting_DuplicateEventsDoNotDoubleFire(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)

	for range 3 {
		for _, kind := range milestoneKinds {
			f.deliver(kind, callID)
		}
	}

	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 1 {
		t.Fatalf("got %d greetings, want exactly 1", got)
	}
}

func TestGreeting_WaitsForPatientContext(t *testing.T) {
	f := newFixture(t)
	// No PlaceCall: the session is created lazily by the first event.
	f.deliver(telephony.EventCallConnected, "lazy-call")
	f.deliver(telephony.EventCallStarted, "lazy-call")
	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:         telephony.EventParticipantsUpdated,
		RawCallID:    "lazy-call",
		Participants: []string{"8:acs:bot-identity"},
	})

	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 0 {
		t.Fatalf("greeting fired without patient context")
	}

	// A later roster update carries the patient's phone; the lookup
	// attaches context and the gate opens.
	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:         telephony.EventParticipantsUpdated,
		RawCallID:    "lazy-call",
		Participants: []string{"8:acs:bot-identity", "4:" + testPhone},
	})

	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 1 {
		t.Fatalf("got %d greetings after patient attach, want 1", got)
	}
}

func TestGreeting_PlayFailureRollsBackLatch(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	f.provider.playErrs = []error{errors.New("media channel not ready")}

	for _, kind := range milestoneKinds {
		f.deliver(kind, callID)
	}
	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 0 {
		t.Fatalf("failed play should not be recorded, got %d", got)
	}

	// A duplicate milestone event re-fires the gate after the rollback.
	f.deliver(telephony.EventCallConnected, callID)
	sess, _ := f.orch.store.Lookup(f.orch.store.Normalize(callID))
	_, _, _, greeted := sess.Milestones()
	if !greeted {
		t.Fatal("latch should be set after the retry succeeded")
	}
	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 1 {
		t.Fatalf("got %d greetings after retry, want 1", got)
	}
}

func TestGreeting_PlayFailedEventRollsBackLatch(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	for _, kind := range milestoneKinds {
		f.deliver(kind, callID)
	}

	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:      telephony.EventPlayFailed,
		RawCallID: callID,
		Label:     labelGreeting,
	})

	f.deliver(telephony.EventCallStarted, callID)
	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 2 {
		t.Fatalf("got %d greeting attempts, want 2 after async play failure", got)
	}
}

func TestPlaceCall_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.PlaceCall(context.Background(), "+15559999999")
	if !errors.Is(err, ErrUnknownPatient) {
		t.Fatalf("err = %v, want ErrUnknownPatient", err)
	}
	if len(f.provider.placed) != 0 {
		t.Fatal("no call should be placed for an unknown patient")
	}
}

func TestCallEnded_PersistsTranscriptBeforeRemoval(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	for _, kind := range milestoneKinds {
		f.deliver(kind, callID)
	}
	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:      telephony.EventRecognizeCompleted,
		RawCallID: callID,
		Utterance: "Yes, Tuesday works for me.",
	})

	f.deliver(telephony.EventCallEnded, callID)

	outcomes := f.records.Outcomes()
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	out := outcomes[0]
	if out.EndReason != "completed" || out.PatientID != "p1" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	// greeting + user turn + agent reply
	if len(out.Transcript) != 3 {
		t.Fatalf("transcript has %d turns, want 3", len(out.Transcript))
	}
	if f.orch.store.Len() != 0 {
		t.Fatal("session should be removed after call ended")
	}
}

func TestLateCallbacks_AfterRemovalAreSilent(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	f.deliver(telephony.EventCallEnded, callID)

	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:      telephony.EventRecognizeCompleted,
		RawCallID: callID,
		Utterance: "hello?",
	})
	f.deliver(telephony.EventPlayCompleted, callID)

	if f.agent.calls != 0 {
		t.Fatal("agent must not run for a reaped session")
	}
	if len(f.provider.plays) != 0 {
		t.Fatal("no playback should start for a reaped session")
	}
}

func TestHandleEvent_MissingIDAndUnknownKind(t *testing.T) {
	f := newFixture(t)

	f.orch.HandleEvent(context.Background(), telephony.CallEvent{Kind: telephony.EventCallConnected})
	if f.orch.store.Len() != 0 {
		t.Fatal("event without id must not create a session")
	}

	f.orch.HandleEvent(context.Background(), telephony.CallEvent{Kind: "SomethingNew", RawCallID: "c1"})
	if len(f.provider.plays) != 0 {
		t.Fatal("unknown kinds must be ignored")
	}
}

func TestOnExpired_PersistsPartialTranscript(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	for _, kind := range milestoneKinds {
		f.deliver(kind, callID)
	}
	sess, _ := f.orch.store.Lookup(f.orch.store.Normalize(callID))

	f.orch.onExpired(sess)

	outcomes := f.records.Outcomes()
	if len(outcomes) != 1 || outcomes[0].EndReason != "expired" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if len(outcomes[0].Transcript) != 1 {
		t.Fatalf("expired outcome should carry the partial transcript, got %d turns", len(outcomes[0].Transcript))
	}
}

func TestAliasConvergence_LongIDRoutesToSameSession(t *testing.T) {
	f := newFixture(t)
	callID := f.place(t)
	f.deliver(telephony.EventCallConnected, callID)
	f.deliver(telephony.EventCallStarted, callID)

	// The participant event arrives under the long encoded server call id.
	longID := "aHR0cHM6Ly9jYWxscy5leGFtcGxlLmNvbS92MS9zZXJ2ZXJjYWxscy9hYmNkZWYxMjM0NTY3ODkwYWJjZGVmMTIzNDU2Nzg5MA=="
	f.orch.HandleEvent(context.Background(), telephony.CallEvent{
		Kind:         telephony.EventParticipantAdded,
		RawCallID:    longID,
		Participants: []string{"4:" + testPhone},
	})

	if f.orch.store.Len() != 1 {
		t.Fatalf("got %d sessions, want 1 after alias convergence", f.orch.store.Len())
	}
	if got := len(f.provider.playsWithLabel(labelGreeting)); got != 1 {
		t.Fatalf("got %d greetings, want 1", got)
	}
}
