// Package agent defines the conversational collaborator that produces the
// orchestrator's spoken replies, with OpenAI and Anthropic implementations.
package agent

import (
	"context"
	"strings"

	"github.com/haasonsaas/callflow/internal/session"
)

// EndMarker is the token the model appends when the conversation is
// complete. It is stripped from the spoken text and surfaced as Reply.Final.
const EndMarker = "[END_CALL]"

// Reply is one generated response.
type Reply struct {
	// Text is the reply to speak.
	Text string

	// Final indicates the conversation is complete: the orchestrator
	// speaks Text as the last substantive turn and then says goodbye.
	Final bool
}

// Agent generates a reply to the caller's utterance given the full prior
// conversation history.
type Agent interface {
	GenerateReply(ctx context.Context, history []session.Turn, utterance string) (Reply, error)
}

// parseReply extracts the completion marker from raw model output.
func parseReply(raw string) Reply {
	final := strings.Contains(raw, EndMarker)
	text := strings.ReplaceAll(raw, EndMarker, "")
	return Reply{Text: strings.TrimSpace(text), Final: final}
}

// DefaultSystemPrompt frames the call for the model when no prompt is
// configured.
const DefaultSystemPrompt = `You are a friendly assistant on a phone call with a patient, helping them schedule a medical appointment. Keep replies short and conversational, one or two sentences, with no formatting or markup. When the conversation has reached a natural conclusion and the patient has no further requests, append the token ` + EndMarker + ` to your final reply.`
