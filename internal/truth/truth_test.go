package truth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRandomScorer(t *testing.T) {
	t.Parallel()

	t.Run("scores stay in range", func(t *testing.T) {
		t.Parallel()

		s := NewRandomScorer()
		for i := 0; i < 500; i++ {
			got, err := s.Score(context.Background(), "anything")
			if err != nil {
				t.Fatal(err)
			}
			if got < MinScore || got > MaxScore {
				t.Fatalf("Score() = %d, out of range", got)
			}
		}
	})

	t.Run("upper bound is reachable", func(t *testing.T) {
		t.Parallel()

		var gotN int
		s := &RandomScorer{intN: func(n int) int { gotN = n; return n - 1 }}
		got, err := s.Score(context.Background(), "")
		if err != nil {
			t.Fatal(err)
		}
		if gotN != MaxScore+1 || got != MaxScore {
			t.Errorf("intN(%d) -> %d, want intN(101) -> 100", gotN, got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := NewRandomScorer().Score(ctx, ""); !errors.Is(err, context.Canceled) {
			t.Errorf("Score() error = %v, want context.Canceled", err)
		}
	})
}

func TestPredictionScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "True", want: 100},
		{in: "Mixed", want: 50},
		{in: "False", want: 0},
		{in: " true ", want: 100},
		{in: "Maybe", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := PredictionScore(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownPrediction) {
					t.Errorf("PredictionScore(%q) error = %v, want ErrUnknownPrediction", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("PredictionScore(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestAnalyzerScorer(t *testing.T) {
	t.Parallel()

	t.Run("posts text and maps prediction", func(t *testing.T) {
		t.Parallel()

		textCh := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				Text string `json:"text"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			textCh <- req.Text
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"statement":"x","prediction":"Mixed"}`))
		}))
		defer srv.Close()

		got, err := NewAnalyzerScorer(srv.URL, WithHTTPClient(srv.Client())).Score(context.Background(), "the sky is green")
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if got != MixedScore {
			t.Errorf("Score() = %d, want %d", got, MixedScore)
		}
		if text := <-textCh; text != "the sky is green" {
			t.Errorf("analyzer received %q", text)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewAnalyzerScorer(srv.URL).Score(context.Background(), "x")
		if !errors.Is(err, ErrAnalyzerStatus) {
			t.Errorf("Score() error = %v, want ErrAnalyzerStatus", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		if _, err := NewAnalyzerScorer(srv.URL).Score(context.Background(), "x"); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewAnalyzerScorer(srv.URL, WithTimeout(50*time.Millisecond)).Score(context.Background(), "x")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Score() error = %v, want deadline exceeded", err)
		}
	})
}
