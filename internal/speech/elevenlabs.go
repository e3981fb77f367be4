package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/upstream"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID      = "eleven_turbo_v2_5"
	defaultOutputFormat = "mp3_44100_128"
)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabs streams speech from the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	apiKey       string
	baseURL      string
	voiceID      string
	modelID      string
	outputFormat string
	policy       upstream.Policy
	circuit      *gobreaker.CircuitBreaker
}

type ElevenLabsOption func(*ElevenLabs)

func WithBaseURL(baseURL string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if v := strings.TrimSpace(baseURL); v != "" {
			e.baseURL = strings.TrimRight(v, "/")
		}
	}
}

func WithVoice(voiceID string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if v := strings.TrimSpace(voiceID); v != "" {
			e.voiceID = v
		}
	}
}

func WithModel(modelID string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if v := strings.TrimSpace(modelID); v != "" {
			e.modelID = v
		}
	}
}

// WithOutputFormat selects the audio encoding, e.g. "mp3_44100_128".
func WithOutputFormat(format string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if v := strings.TrimSpace(format); v != "" {
			e.outputFormat = v
		}
	}
}

func WithPolicy(p upstream.Policy) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if p.Client == nil {
			p.Client = e.policy.Client
		}
		e.policy = p
	}
}

// NewElevenLabs creates a synthesizer. The API key is mandatory.
func NewElevenLabs(apiKey string, client *http.Client, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key must not be empty")
	}
	if client == nil {
		client = http.DefaultClient
	}
	e := &ElevenLabs{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		voiceID:      defaultVoiceID,
		modelID:      defaultModelID,
		outputFormat: defaultOutputFormat,
		policy:       upstream.Policy{Client: client},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.circuit = upstream.BreakerFor("elevenlabs", e.policy)
	return e, nil
}

func (e *ElevenLabs) streamURL() string {
	q := url.Values{}
	q.Set("output_format", e.outputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream?%s", e.baseURL, url.PathEscape(e.voiceID), q.Encode())
}

// Synthesize opens the streaming call. Failures here happen before any audio
// reaches the caller and are reported as apperr.CodeUpstream. The returned
// Stream is tied to ctx: canceling ctx aborts the upstream transfer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (Stream, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:          text,
		ModelID:       e.modelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, apperr.Upstream("speech synthesis failed", fmt.Errorf("elevenlabs: marshal request: %w", err))
	}

	u := e.streamURL()
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("xi-api-key", e.apiKey)
		return req, nil
	}

	resp, err := upstream.Do(ctx, e.policy, e.circuit, buildRequest)
	if err != nil {
		return nil, apperr.Upstream("speech synthesis failed", fmt.Errorf("elevenlabs: %w", err))
	}
	return NewReaderStream(resp.Body, DefaultChunkSize), nil
}
