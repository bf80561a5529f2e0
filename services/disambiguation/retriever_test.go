package disambiguation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disambiguator/models"
)

func testParams(t *testing.T) RetrievalParams {
	return ParamsFromRules(loadTestRules(t))
}

func TestRetrieverReadThrough(t *testing.T) {
	store := &fakeCatalog{category: map[string][]models.ServiceOption{"cabelo": hairOptions()}}
	cache := newMemKV()
	r := NewRetriever(store, cache, nil)
	p := testParams(t)
	ctx := context.Background()

	first, err := r.TopByCategory(ctx, "cabelo", p)
	require.NoError(t, err)
	second, err := r.TopByCategory(ctx, "cabelo", p)
	require.NoError(t, err)

	assert.Equal(t, 1, store.callCount())
	assert.Equal(t, first, second)
	_, err = cache.Get(ctx, CandidateKey(OpTopByCategory, "cabelo", 3))
	assert.NoError(t, err)
}

func TestRetrieverCategoryOrderAndLimit(t *testing.T) {
	opts := append(hairOptions(),
		models.ServiceOption{ID: "svc-cheap", Name: "Franja", NormalizedName: "franja", Category: "Cabelo", Price: 20, Popularity: 7},
		models.ServiceOption{ID: "svc-tie", Name: "Alisamento", NormalizedName: "alisamento", Category: "Cabelo", Price: 50, Popularity: 7},
	)
	store := &fakeCatalog{category: map[string][]models.ServiceOption{"cabelo": opts}}
	r := NewRetriever(store, nil, nil)

	got, err := r.TopByCategory(context.Background(), "cabelo", testParams(t))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "svc-fem", got[0].ID)   // 12 bookings
	assert.Equal(t, "svc-cheap", got[1].ID) // 7 bookings, lowest price
	assert.Equal(t, "svc-tie", got[2].ID)   // 7 bookings, 50.00, "Alisamento" < "Escova"
}

func TestRetrieverDropsOtherCategories(t *testing.T) {
	opts := append(hairOptions(),
		models.ServiceOption{ID: "svc-mani", Name: "Manicure", NormalizedName: "manicure", Category: "Unhas", Price: 30, Popularity: 99},
		models.ServiceOption{ID: "svc-barba-cabelo", Name: "Barba e Cabelo", NormalizedName: "barba cabelo", Category: "Barba", Price: 70, Popularity: 50},
	)
	store := &fakeCatalog{category: map[string][]models.ServiceOption{"cabelo": opts}}
	r := NewRetriever(store, nil, nil)

	got, err := r.TopByCategory(context.Background(), "cabelo", testParams(t))
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, o := range got {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"svc-barba-cabelo", "svc-fem", "svc-escova"}, ids)
}

func TestRetrieverSearchOrder(t *testing.T) {
	store := &fakeCatalog{search: map[string][]models.ServiceOption{"corte": {
		{ID: "a", Name: "Corte Feminino", Score: 0.4, Popularity: 1, Price: 80},
		{ID: "b", Name: "Corte", Score: 1, Popularity: 0, Price: 40},
		{ID: "c", Name: "Corte Masculino", Score: 0.4, Popularity: 9, Price: 45},
	}}}
	got, err := NewRetriever(store, nil, nil).SearchByText(context.Background(), "corte", testParams(t))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRetrieverCacheFailuresAreNotFatal(t *testing.T) {
	store := &fakeCatalog{search: map[string][]models.ServiceOption{"corte masculino": {maleCut()}}}
	cache := newMemKV()
	cache.getErr = errors.New("redis: connection pool timeout")
	cache.setErr = errors.New("redis: READONLY")
	r := NewRetriever(store, cache, nil)

	got, err := r.SearchByText(context.Background(), "corte masculino", testParams(t))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "svc-masc", got[0].ID)
	assert.Equal(t, 1, store.callCount())
}

func TestRetrieverStoreFailure(t *testing.T) {
	store := &fakeCatalog{err: errStoreDown}
	_, err := NewRetriever(store, newMemKV(), nil).TopByCategory(context.Background(), "cabelo", testParams(t))

	var rf *RetrievalFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, OpTopByCategory, rf.Op)
	assert.Equal(t, "cabelo", rf.Term)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRetrieverTimeout(t *testing.T) {
	store := &fakeCatalog{delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewRetriever(store, nil, nil).SearchByText(ctx, "escova", testParams(t))
	var rf *RetrievalFailure
	require.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetrieverReadOnlyNeverWrites(t *testing.T) {
	store := &fakeCatalog{category: map[string][]models.ServiceOption{"cabelo": hairOptions()}}
	cache := newMemKV()
	r := NewRetriever(store, cache, nil).ReadOnly()

	_, err := r.TopByCategory(context.Background(), "cabelo", testParams(t))
	require.NoError(t, err)
	assert.Zero(t, cache.len())
}

func TestRetrieverWarmOverwrites(t *testing.T) {
	store := &fakeCatalog{category: map[string][]models.ServiceOption{"cabelo": hairOptions()}}
	cache := newMemKV()
	r := NewRetriever(store, cache, nil)
	p := testParams(t)
	ctx := context.Background()

	_, err := r.TopByCategory(ctx, "cabelo", p)
	require.NoError(t, err)
	n, err := r.Warm(ctx, "cabelo", p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, store.callCount())
	assert.Equal(t, 1, cache.len())
}
