package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecodeSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_decode_steps_total",
		Help: "The total number of beam search expansion steps",
	})

	DecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bodkin_decode_duration_seconds",
		Help:    "Duration of full beam search decodes",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	HypothesesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_hypotheses_finished_total",
		Help: "Finished hypotheses by termination reason",
	}, []string{"reason"})

	LiveBeamWidth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bodkin_live_beam_width",
		Help:    "Distribution of live beam widths per expansion step",
		Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32, 48, 64},
	})

	ScorerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_scorer_failures_total",
		Help: "Scoring model failures by stage",
	}, []string{"stage"})

	SentencesTranslated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_sentences_translated_total",
		Help: "The total number of sentences translated",
	})

	TokensGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_tokens_generated_total",
		Help: "The total number of target tokens emitted",
	})

	ExternalScorerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_external_scorer_runs_total",
		Help: "External scorer invocations by outcome",
	}, []string{"status"})

	TranslateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_translate_requests_total",
		Help: "Translation requests by endpoint",
	}, []string{"endpoint"})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bodkin_streams_active",
		Help: "Number of active WebSocket translation streams",
	})
)

// Termination reason labels for HypothesesFinished.
const (
	ReasonEOS    = "eos"
	ReasonLength = "length"
)
