// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// non-streaming synthesis REST endpoint. It implements the tts.Provider
// interface.
package elevenlabs

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/Tavasya/speakdrill/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	outputMIME     = "audio/mpeg"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithClient replaces the HTTP client, mainly for tests.
func WithClient(c *resty.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	voiceID string
	model   string
}

var _ tts.Provider = (*Provider)(nil)

// New creates an ElevenLabs Provider speaking with voiceID. apiKey and
// voiceID must be non-empty.
func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		client:  resty.New(),
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		voiceID: voiceID,
		model:   defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON payload sent to ElevenLabs.
type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, text string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("xi-api-key", p.apiKey).
		SetHeader("Accept", outputMIME).
		SetBody(synthesisRequest{
			Text:    text,
			ModelID: p.model,
			VoiceSettings: voiceSettings{
				Stability:       0.5,
				SimilarityBoost: 0.75,
			},
		}).
		Post(fmt.Sprintf("%s/v1/text-to-speech/%s", p.baseURL, p.voiceID))
	if err != nil {
		return tts.Clip{}, fmt.Errorf("%w: %v", tts.ErrSynthesis, err)
	}
	if resp.IsError() {
		return tts.Clip{}, fmt.Errorf("%w: http %d: %s", tts.ErrSynthesis, resp.StatusCode(), resp.String())
	}
	audio := resp.Body()
	if len(audio) == 0 {
		return tts.Clip{}, fmt.Errorf("%w: empty audio response", tts.ErrSynthesis)
	}
	return tts.Clip{Audio: audio, MIME: outputMIME}, nil
}
