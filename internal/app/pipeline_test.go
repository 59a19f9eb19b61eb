package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-insights/internal/domain"
	"chat-insights/internal/inference/router"
	"chat-insights/internal/pkg/config"
)

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// sidecar отвечает как сервис инференса: тексты со словом "happy"
// получают joy, остальные neutral.
func sidecar() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/emotions":
			var req struct {
				Inputs []string `json:"inputs"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			out := make([][]labelScore, len(req.Inputs))
			for i, text := range req.Inputs {
				top := "neutral"
				if strings.Contains(strings.ToLower(text), "happy") {
					top = "joy"
				}
				for _, l := range domain.Emotions {
					s := 0.01
					if l == top {
						s = 0.9
					}
					out[i] = append(out[i], labelScore{Label: l, Score: s})
				}
			}
			_ = json.NewEncoder(w).Encode(out)
		case "/sentiment":
			_ = json.NewEncoder(w).Encode(domain.Sentiment{Positive: 0.6, Neutral: 0.4, Compound: 0.5})
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
}

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	t.Setenv("INFERENCE_URL", "")
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Inference.Endpoints = []config.InferenceEndpoint{{ID: "local", URL: url}}
	return cfg
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPipeline(t *testing.T) {
	t.Run("анализ через сервис инференса", func(t *testing.T) {
		ts := httptest.NewServer(sidecar())
		defer ts.Close()

		p, err := NewPipeline(testConfig(t, ts.URL), discard())
		require.NoError(t, err)
		defer p.Close()

		transcript := strings.Join([]string{
			"14/03/2024, 10:00 - Alice: I am so happy today 😀",
			"14/03/2024, 10:05 - Bob: Running late for the meeting",
			"15/03/2024, 09:00 - Alice: <Media omitted>",
			"15/03/2024, 09:30 - Bob: happy to hear that",
		}, "\n")

		report, err := p.Analyzer.Analyze(context.Background(), transcript)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Metadata.TotalMessages)
		assert.Equal(t, []string{"Alice", "Bob"}, report.Metadata.Users)
		assert.Equal(t, 2, report.Emotions.Overall.Get("joy").Frequency)
		assert.InDelta(t, 0.5, report.OverallSentimentAvg, 1e-9)
		assert.Equal(t, 2, report.Statistics.LongestStreak.Days)
	})

	t.Run("сервис инференса недоступен", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer ts.Close()

		cfg := testConfig(t, ts.URL)
		cfg.Inference.MaxRetries = 0
		p, err := NewPipeline(cfg, discard())
		require.NoError(t, err)
		defer p.Close()

		_, err = p.Analyzer.Analyze(context.Background(), "14/03/2024, 10:00 - Alice: hi\n14/03/2024, 10:01 - Bob: hey")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrProcessing))
	})

	t.Run("неверный порядок даты", func(t *testing.T) {
		cfg := testConfig(t, "http://localhost:1")
		cfg.Analysis.DateOrder = "ymd"
		_, err := NewPipeline(cfg, discard())
		assert.Error(t, err)
	})

	t.Run("нет сервисов инференса", func(t *testing.T) {
		cfg := testConfig(t, "http://localhost:1")
		cfg.Inference.Endpoints = nil
		_, err := NewPipeline(cfg, discard())
		assert.ErrorIs(t, err, router.ErrNoEndpoints)
	})
}
