package disambiguation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"disambiguator/database/kvstore"
	"disambiguator/models"
)

const rulesPath = "../../config/disambiguation.yaml"

func loadTestRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := LoadRules(rulesPath)
	require.NoError(t, err)
	return rules
}

// fakeCatalog serves canned options and records calls.
type fakeCatalog struct {
	mu       sync.Mutex
	category map[string][]models.ServiceOption
	search   map[string][]models.ServiceOption
	err      error
	delay    time.Duration
	panicMsg string
	calls    int
}

func (f *fakeCatalog) wait(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeCatalog) TopByCategory(ctx context.Context, category string, limit int, _ time.Duration) ([]models.ServiceOption, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return append([]models.ServiceOption(nil), f.category[category]...), nil
}

func (f *fakeCatalog) SearchByText(ctx context.Context, term string, limit int, _ float64, _ time.Duration) ([]models.ServiceOption, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return append([]models.ServiceOption(nil), f.search[term]...), nil
}

func (f *fakeCatalog) Stats(context.Context, time.Duration) (models.CatalogStats, error) {
	return models.CatalogStats{DistinctCategories: len(f.category)}, f.err
}

func (f *fakeCatalog) Ping(context.Context) error { return f.err }

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memKV is an in-memory KVStore with injectable failures.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, kvstore.ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memKV) ListKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return m.ListKeys(ctx, prefix+"*")
}

// ListKeys supports only trailing-star patterns.
func (m *memKV) ListKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memKV) Ping(context.Context) error { return m.getErr }

func (m *memKV) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// recordingMetrics counts every event by label.
type recordingMetrics struct {
	mu        sync.Mutex
	prompts   map[string]int
	choices   map[int]int
	persisted map[string]int
	fallbacks map[string]int
	observed  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		prompts:   map[string]int{},
		choices:   map[int]int{},
		persisted: map[string]int{},
		fallbacks: map[string]int{},
		observed:  map[string]int{},
	}
}

func (r *recordingMetrics) PromptShown(category string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[category]++
}

func (r *recordingMetrics) ChoiceReceived(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choices[index]++
}

func (r *recordingMetrics) SelectionPersisted(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted[source]++
}

func (r *recordingMetrics) FallbackTriggered(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[reason]++
}

func (r *recordingMetrics) ObserveResolution(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[op]++
}

var errStoreDown = errors.New("connection refused")

func hairOptions() []models.ServiceOption {
	return []models.ServiceOption{
		{ID: "svc-escova", Name: "Escova", NormalizedName: "escova", ProfessionalID: "pro-2", Category: "Cabelo", Price: 50, DurationMinutes: 40, Popularity: 7},
		{ID: "svc-fem", Name: "Corte Feminino", NormalizedName: "corte feminino", ProfessionalID: "pro-1", Category: "Cabelo", Price: 80, DurationMinutes: 60, Popularity: 12},
		{ID: "svc-hidra", Name: "Hidratação", NormalizedName: "hidratacao", ProfessionalID: "pro-3", Category: "Cabelos", Price: 90, DurationMinutes: 45, Popularity: 0},
	}
}

func maleCut() models.ServiceOption {
	return models.ServiceOption{
		ID: "svc-masc", Name: "Corte Masculino", NormalizedName: "corte masculino", ProfessionalID: "pro-9",
		Category: "Cabelo", Price: 45, DurationMinutes: 30, Popularity: 20, Score: 1,
	}
}
