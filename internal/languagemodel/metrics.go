package languagemodel

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lmhost",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions created and not yet destroyed",
		},
	)

	promptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmhost",
			Subsystem: "sessions",
			Name:      "prompts_total",
			Help:      "Prompt operations by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	inputTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lmhost",
			Subsystem: "sessions",
			Name:      "input_tokens_total",
			Help:      "Input tokens charged to sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, promptsTotal, inputTokensTotal)
}

// observePrompt records a finished prompt. mode is "prompt" or "stream".
func observePrompt(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	promptsTotal.WithLabelValues(mode, outcome).Inc()
}
