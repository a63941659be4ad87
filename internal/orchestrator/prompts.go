package orchestrator

import "fmt"

// Operation labels chosen when issuing a play command. The provider echoes
// the label back on the completion callback, which drives the turn-taking
// transitions in dispatch.
const (
	labelGreeting      = "greeting"
	labelReprompt      = "reprompt"
	labelResponse      = "response"
	labelFinalResponse = "final-response"
	labelGoodbye       = "goodbye"
)

const (
	repromptLine = "I'm sorry, I didn't catch that. Could you say it again?"
	goodbyeLine  = "Thank you for your time. Have a wonderful day. Goodbye!"

	// fallbackLine covers an agent outage mid-conversation. The patient
	// hears something and the call stays alive.
	fallbackLine = "I'm sorry, I'm having a little trouble on my end. Could you repeat that?"
)

func greetingLine(patientName string) string {
	if patientName == "" {
		return "Hello! This is the clinic's automated assistant calling about your upcoming appointment. How are you today?"
	}
	return fmt.Sprintf("Hello %s! This is the clinic's automated assistant calling about your upcoming appointment. How are you today?", patientName)
}

// Recognition failure subcodes reported by the call automation service.
const (
	codeNoSpeech    = 8510 // initial silence timeout
	codeLongSilence = 8532 // inter-digit / continuation silence timeout
	codePlayTrouble = 8511 // prompt playback failure during recognition
)

// guidanceLine maps a recognition failure to one of four canned lines.
func guidanceLine(code int) string {
	switch code {
	case codeNoSpeech:
		return "I didn't hear anything. If you're there, please say something and I'll do my best to help."
	case codeLongSilence:
		return "It's been quiet for a while. Are you still there? Please let me know how I can help."
	case codePlayTrouble:
		return "I'm having trouble hearing you clearly. Could you try speaking again?"
	default:
		return "Sorry, something went wrong on my end. Could you please repeat that?"
	}
}
