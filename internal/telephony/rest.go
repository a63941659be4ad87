package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/callflow/internal/retry"
)

// RESTProvider talks to a call-automation REST API.
//
// Thread Safety: RESTProvider is safe for concurrent use.
type RESTProvider struct {
	baseURL       string
	token         string
	callbackURL   string
	voice         string
	fallbackVoice string
	language      string

	client *http.Client
	logger *slog.Logger
}

// RESTConfig holds configuration for the REST provider.
type RESTConfig struct {
	// BaseURL is the API endpoint of the call-automation resource (required).
	BaseURL string

	// Token is the access token used as bearer auth (required).
	Token string

	// CallbackURL is the public webhook URL registered on placed calls (required).
	CallbackURL string

	// Voice is the primary TTS voice. Default: "en-US-JennyNeural".
	Voice string

	// FallbackVoice is tried once when the primary voice fails.
	// Default: "en-US-GuyNeural".
	FallbackVoice string

	// Language is the speech recognition locale. Default: "en-US".
	Language string

	// Logger receives provider logs. Optional.
	Logger *slog.Logger
}

// NewRESTProvider creates a call-automation provider.
func NewRESTProvider(cfg RESTConfig) (*RESTProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("telephony: base URL is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("telephony: access token is required")
	}
	if cfg.CallbackURL == "" {
		return nil, errors.New("telephony: callback URL is required")
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "en-US-JennyNeural"
	}
	fallback := cfg.FallbackVoice
	if fallback == "" {
		fallback = "en-US-GuyNeural"
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RESTProvider{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		callbackURL:   cfg.CallbackURL,
		voice:         voice,
		fallbackVoice: fallback,
		language:      language,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}, nil
}

// PlaceCall starts an outbound call and returns the provider call id.
func (p *RESTProvider) PlaceCall(ctx context.Context, to, from string) (string, error) {
	body := map[string]any{
		"targets": []map[string]any{
			{"kind": "phoneNumber", "phoneNumber": map[string]string{"value": to}},
		},
		"sourceCallerIdNumber": map[string]string{"value": from},
		"callbackUri":          p.callbackURL,
	}

	resp, err := p.apiRequest(ctx, http.MethodPost, "/calling/callConnections", body)
	if err != nil {
		return "", fmt.Errorf("telephony: place call: %w", err)
	}

	var result struct {
		CallConnectionID string `json:"callConnectionId"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("telephony: parse place-call response: %w", err)
	}
	if result.CallConnectionID == "" {
		return "", errors.New("telephony: place-call response missing call id")
	}
	return result.CallConnectionID, nil
}

// Play speaks text on the call under the given operation label. Markup is
// stripped before handing the text to the speech layer; if the primary voice
// fails, the fallback voice is attempted once before surfacing the error.
func (p *RESTProvider) Play(ctx context.Context, callID, text, label string) error {
	text = SanitizeSpeech(text)

	err := p.play(ctx, callID, text, label, p.voice)
	if err == nil {
		return nil
	}
	p.logger.Warn("primary voice failed, retrying with fallback",
		"call_id", callID, "voice", p.voice, "error", err)

	if err := p.play(ctx, callID, text, label, p.fallbackVoice); err != nil {
		return fmt.Errorf("telephony: play %q: %w", label, err)
	}
	return nil
}

func (p *RESTProvider) play(ctx context.Context, callID, text, label, voice string) error {
	body := map[string]any{
		"playSources": []map[string]any{
			{
				"kind": "text",
				"text": map[string]string{"text": text, "voiceName": voice},
			},
		},
		"operationContext": label,
	}
	path := fmt.Sprintf("/calling/callConnections/%s:play", callID)
	_, err := p.apiRequest(ctx, http.MethodPost, path, body)
	return err
}

// StartRecognition begins speech capture, optionally addressed at one
// participant.
func (p *RESTProvider) StartRecognition(ctx context.Context, callID, target string, opts RecognitionOptions) error {
	language := opts.Language
	if language == "" {
		language = p.language
	}

	recognize := map[string]any{
		"interruptPrompt":                true,
		"initialSilenceTimeoutInSeconds": int(opts.InitialSilence.Seconds()),
		"speechLanguage":                 language,
	}
	if opts.EndSilence > 0 {
		recognize["endSilenceTimeoutInSeconds"] = int(opts.EndSilence.Seconds())
	}
	if opts.Interim {
		recognize["interimResults"] = true
	}
	if target != "" {
		recognize["targetParticipant"] = map[string]any{
			"kind":        "phoneNumber",
			"phoneNumber": map[string]string{"value": target},
		}
	}

	body := map[string]any{
		"recognizeInputType": "speech",
		"recognizeOptions":   recognize,
		"operationContext":   "listen",
	}
	path := fmt.Sprintf("/calling/callConnections/%s:recognize", callID)
	if _, err := p.apiRequest(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("telephony: start recognition: %w", err)
	}
	return nil
}

// Hangup terminates the call for every participant.
func (p *RESTProvider) Hangup(ctx context.Context, callID string) error {
	path := fmt.Sprintf("/calling/callConnections/%s", callID)
	_, err := p.apiRequest(ctx, http.MethodDelete, path, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("telephony: hangup: %w", err)
	}
	return nil
}

// statusError carries the HTTP status of a failed API call.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// apiRequest makes an authenticated request, retrying transient failures
// (network errors, 429, 5xx) with exponential backoff.
func (p *RESTProvider) apiRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	result, res := retry.DoWithValue(ctx, retry.Exponential(3, 200*time.Millisecond, 5*time.Second), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, (1<<20)+1))
		if err != nil {
			return nil, err
		}
		if len(data) > 1<<20 {
			return nil, retry.Permanent(fmt.Errorf("API response too large (%d bytes)", len(data)))
		}

		if resp.StatusCode >= 400 {
			serr := &statusError{status: resp.StatusCode, body: string(data)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, serr
			}
			return nil, retry.Permanent(serr)
		}
		return data, nil
	})
	return result, res.Err
}
