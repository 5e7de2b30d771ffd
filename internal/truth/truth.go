package truth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	// MinScore is the lowest score, for text judged false.
	MinScore = 0

	// MixedScore is the score for text judged partly true.
	MixedScore = 50

	// MaxScore is the highest score, for text judged true.
	MaxScore = 100

	// DefaultTimeout bounds one analyzer request.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrUnknownPrediction is returned when the analyzer answers with a
	// prediction outside True, Mixed and False.
	ErrUnknownPrediction = errors.New("unknown prediction")

	// ErrAnalyzerStatus is returned when the analyzer answers with a non-2xx status.
	ErrAnalyzerStatus = errors.New("analyzer returned an error status")
)

// Scorer rates how true a piece of text is.
type Scorer interface {
	Score(ctx context.Context, text string) (int, error)
}

// RandomScorer returns a uniform random score in [MinScore, MaxScore].
type RandomScorer struct {
	intN func(n int) int
}

var _ Scorer = (*RandomScorer)(nil)

// NewRandomScorer returns a RandomScorer using the global random source.
func NewRandomScorer() *RandomScorer {
	return &RandomScorer{intN: rand.IntN}
}

// Score ignores text.
func (r *RandomScorer) Score(ctx context.Context, _ string) (int, error) {
	if err := ctx.Err(); err != nil {
		return MinScore, err
	}
	return r.intN(MaxScore + 1), nil
}

// AnalyzerScorer asks a remote analyzer to classify text.
type AnalyzerScorer struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

var _ Scorer = (*AnalyzerScorer)(nil)

// AnalyzerOption configures an AnalyzerScorer.
type AnalyzerOption func(*AnalyzerScorer)

// WithHTTPClient sets the client used for analyzer requests.
func WithHTTPClient(c *http.Client) AnalyzerOption {
	return func(a *AnalyzerScorer) {
		if c != nil {
			a.client = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *AnalyzerScorer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAnalyzerScorer returns a scorer that POSTs to endpoint.
func NewAnalyzerScorer(endpoint string, opts ...AnalyzerOption) *AnalyzerScorer {
	a := &AnalyzerScorer{
		endpoint: endpoint,
		client:   http.DefaultClient,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Statement  string `json:"statement"`
	Prediction string `json:"prediction"`
}

// Score sends {"text": text} and maps the returned prediction to a score.
func (a *AnalyzerScorer) Score(ctx context.Context, text string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return MinScore, fmt.Errorf("failed to encode analyzer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return MinScore, fmt.Errorf("failed to create analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return MinScore, fmt.Errorf("failed to call analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return MinScore, fmt.Errorf("%w: %d", ErrAnalyzerStatus, resp.StatusCode)
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MinScore, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	return PredictionScore(out.Prediction)
}

// PredictionScore maps an analyzer prediction to a score. Matching ignores
// case and surrounding space.
func PredictionScore(prediction string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(prediction)) {
	case "true":
		return MaxScore, nil
	case "mixed":
		return MixedScore, nil
	case "false":
		return MinScore, nil
	default:
		return MinScore, fmt.Errorf("%w: %q", ErrUnknownPrediction, prediction)
	}
}
