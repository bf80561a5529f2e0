package disambiguation

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Selection sources.
const (
	SourceCatalog = "catalog"
	SourceManual  = "manual"
)

// Fallback reasons.
const (
	ReasonNoOptions         = "no_options"
	ReasonRetrievalError    = "retrieval_error"
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonUserDeclined      = "user_declined"
	ReasonInvalidSession    = "invalid_session"
	ReasonInternalError     = "internal_error"
)

// Metrics is the sink the orchestrator reports to.
type Metrics interface {
	PromptShown(category string, optionCount int)
	ChoiceReceived(index int)
	SelectionPersisted(source string)
	FallbackTriggered(reason string)
	ObserveResolution(operation string, d time.Duration)
}

// NopMetrics discards everything. Dry runs use it.
type NopMetrics struct{}

func (NopMetrics) PromptShown(string, int)                 {}
func (NopMetrics) ChoiceReceived(int)                      {}
func (NopMetrics) SelectionPersisted(string)               {}
func (NopMetrics) FallbackTriggered(string)                {}
func (NopMetrics) ObserveResolution(string, time.Duration) {}

// PrometheusMetrics exports the disambiguation counters.
type PrometheusMetrics struct {
	promptsShown        *prometheus.CounterVec
	choicesReceived     *prometheus.CounterVec
	selectionsPersisted *prometheus.CounterVec
	fallbacksTriggered  *prometheus.CounterVec
	resolutionSeconds   *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		// Labels: category, options
		promptsShown: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disambiguation",
			Name:      "prompts_shown_total",
			Help:      "Candidate prompts shown to users by category and option count",
		}, []string{"category", "options"}),
		// Labels: index (1-based)
		choicesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disambiguation",
			Name:      "numeric_choices_total",
			Help:      "Valid numeric choices received by chosen index",
		}, []string{"index"}),
		// Labels: source (catalog, manual)
		selectionsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disambiguation",
			Name:      "selections_persisted_total",
			Help:      "Resolved selections handed back to the conversation flow",
		}, []string{"source"}),
		// Labels: reason
		fallbacksTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disambiguation",
			Name:      "fallbacks_total",
			Help:      "Transitions to manual service input by reason",
		}, []string{"reason"}),
		resolutionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "disambiguation",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of one orchestrator call",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"operation"}),
	}
}

func (m *PrometheusMetrics) PromptShown(category string, optionCount int) {
	if category == "" {
		category = "search"
	}
	m.promptsShown.WithLabelValues(category, strconv.Itoa(optionCount)).Inc()
}

func (m *PrometheusMetrics) ChoiceReceived(index int) {
	m.choicesReceived.WithLabelValues(strconv.Itoa(index)).Inc()
}

func (m *PrometheusMetrics) SelectionPersisted(source string) {
	m.selectionsPersisted.WithLabelValues(source).Inc()
}

func (m *PrometheusMetrics) FallbackTriggered(reason string) {
	m.fallbacksTriggered.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) ObserveResolution(operation string, d time.Duration) {
	m.resolutionSeconds.WithLabelValues(operation).Observe(d.Seconds())
}
