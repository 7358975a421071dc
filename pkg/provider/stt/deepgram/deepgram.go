// Package deepgram provides a Deepgram-backed speech-to-text provider using
// the prerecorded transcription REST endpoint. It implements the
// stt.Provider interface.
package deepgram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/Tavasya/speakdrill/pkg/provider/stt"
)

const (
	endpoint     = "https://api.deepgram.com/v1/listen"
	defaultModel = "nova-2"
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model (e.g., "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithClient replaces the HTTP client, mainly for tests.
func WithClient(c *resty.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithEndpoint overrides the API endpoint URL, mainly for tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// Provider implements stt.Provider backed by Deepgram.
type Provider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	model    string
}

var _ stt.Provider = (*Provider)(nil)

// New creates a Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		client:   resty.New(),
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// deepgramResponse mirrors the prerecorded transcription response.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mime string) (stt.Transcript, error) {
	if len(audio) == 0 {
		return stt.Transcript{}, fmt.Errorf("%w: empty audio", stt.ErrTranscription)
	}

	var body deepgramResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Token "+p.apiKey).
		SetHeader("Content-Type", mime).
		SetQueryParams(map[string]string{
			"model":        p.model,
			"language":     "en",
			"punctuate":    "true",
			"smart_format": "true",
		}).
		SetBody(audio).
		SetResult(&body).
		Post(p.endpoint)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("%w: %v", stt.ErrTranscription, err)
	}
	if resp.IsError() {
		return stt.Transcript{}, fmt.Errorf("%w: http %d: %s", stt.ErrTranscription, resp.StatusCode(), resp.String())
	}
	if len(body.Results.Channels) == 0 || len(body.Results.Channels[0].Alternatives) == 0 {
		return stt.Transcript{}, fmt.Errorf("%w: no alternatives in response", stt.ErrTranscription)
	}

	alt := body.Results.Channels[0].Alternatives[0]
	t := stt.Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Words:      make([]stt.Word, 0, len(alt.Words)),
	}
	for _, w := range alt.Words {
		t.Words = append(t.Words, stt.Word{
			Text:       w.Word,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Confidence,
		})
	}
	return t, nil
}
