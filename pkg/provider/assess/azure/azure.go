// Package azure provides an Azure Speech backed pronunciation assessment
// provider. It implements the assess.Provider interface over the short-audio
// REST endpoint.
package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/Tavasya/speakdrill/pkg/provider/assess"
)

const (
	endpointFmt = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"

	// weakWordThreshold is the accuracy score below which a word is offered
	// for drilling.
	weakWordThreshold = 70.0
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithClient replaces the HTTP client, mainly for tests.
func WithClient(c *resty.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithWeakWordThreshold overrides the weak-word accuracy cutoff.
func WithWeakWordThreshold(t float64) Option {
	return func(p *Provider) { p.threshold = t }
}

// WithEndpoint overrides the regional endpoint URL, for sovereign clouds and
// tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) { p.endpoint = url }
}

// Provider implements assess.Provider backed by Azure Speech.
type Provider struct {
	client    *resty.Client
	endpoint  string
	key       string
	threshold float64
}

var _ assess.Provider = (*Provider)(nil)

// New creates an Azure assessment provider for region. key must be non-empty.
func New(region, key string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure: subscription key must not be empty")
	}
	p := &Provider{
		client:    resty.New(),
		endpoint:  fmt.Sprintf(endpointFmt, region),
		key:       key,
		threshold: weakWordThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// assessmentConfig is the JSON document carried base64-encoded in the
// Pronunciation-Assessment header.
type assessmentConfig struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
}

// azureResponse mirrors the short-audio recognition response.
type azureResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	NBest             []struct {
		PronScore float64 `json:"PronScore"`
		Words     []struct {
			Word          string  `json:"Word"`
			AccuracyScore float64 `json:"AccuracyScore"`
			ErrorType     string  `json:"ErrorType"`
		} `json:"Words"`
	} `json:"NBest"`
}

// Assess implements [assess.Provider].
func (p *Provider) Assess(ctx context.Context, audio []byte, mime, referenceText string) (assess.Result, error) {
	if len(audio) == 0 {
		return assess.Result{}, fmt.Errorf("%w: empty audio", assess.ErrAssessment)
	}

	cfg, err := json.Marshal(assessmentConfig{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Word",
		Dimension:     "Comprehensive",
	})
	if err != nil {
		return assess.Result{}, fmt.Errorf("%w: config: %v", assess.ErrAssessment, err)
	}

	var body azureResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Ocp-Apim-Subscription-Key", p.key).
		SetHeader("Content-Type", mime).
		SetHeader("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(cfg)).
		SetQueryParam("language", "en-US").
		SetBody(audio).
		SetResult(&body).
		Post(p.endpoint)
	if err != nil {
		return assess.Result{}, fmt.Errorf("%w: %v", assess.ErrAssessment, err)
	}
	if resp.IsError() {
		return assess.Result{}, fmt.Errorf("%w: http %d: %s", assess.ErrAssessment, resp.StatusCode(), resp.String())
	}
	if body.RecognitionStatus != "Success" || len(body.NBest) == 0 {
		return assess.Result{}, fmt.Errorf("%w: recognition status %q", assess.ErrAssessment, body.RecognitionStatus)
	}

	best := body.NBest[0]
	result := assess.Result{
		OverallScore: best.PronScore,
		Words:        make([]assess.WordScore, 0, len(best.Words)),
	}
	for _, w := range best.Words {
		errType := w.ErrorType
		if errType == "None" {
			errType = ""
		}
		result.Words = append(result.Words, assess.WordScore{
			Word:      w.Word,
			Accuracy:  w.AccuracyScore,
			ErrorType: errType,
		})
		if w.AccuracyScore < p.threshold {
			result.WeakWords = append(result.WeakWords, w.Word)
		}
	}
	return result, nil
}
