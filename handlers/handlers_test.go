package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disambiguator/models"
	"disambiguator/services/admin"
	"disambiguator/services/disambiguation"
	"disambiguator/services/session"
)

type fakeFlow struct {
	last models.TurnRequest
	err  error
}

func (f *fakeFlow) Start(_ context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.TurnResponse{SessionID: "generated", Success: true, NextState: string(models.StateCatalogWaitChoice), ResponseText: "Qual?"}, nil
}

func (f *fakeFlow) Turn(_ context.Context, req models.TurnRequest) (*models.TurnResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.TurnResponse{SessionID: req.SessionID, Success: true, Completed: true, NextState: "ASK_DATE"}, nil
}

type fakeAdmin struct {
	clearPattern string
	reloadErr    error
	statsErr     error
	warmed       []string
}

func (f *fakeAdmin) TestInput(text string) models.InputReport {
	return models.InputReport{Input: text, Normalized: strings.ToLower(text)}
}

func (f *fakeAdmin) DryRun(_ context.Context, text string) models.DisambiguationResult {
	return models.DisambiguationResult{Success: true, ResponseText: "dry " + text}
}

func (f *fakeAdmin) Stats(context.Context) (*models.DisambiguationStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &models.DisambiguationStats{CandidateCacheKeys: 4, Sessions: 2}, nil
}

func (f *fakeAdmin) ClearCache(_ context.Context, pattern string) (int64, error) {
	if pattern == "" {
		return 0, admin.ErrEmptyPattern
	}
	f.clearPattern = pattern
	return 3, nil
}

func (f *fakeAdmin) ClearSessions(ctx context.Context, pattern string) (int64, error) {
	return f.ClearCache(ctx, pattern)
}

func (f *fakeAdmin) ReloadRules() error { return f.reloadErr }

func (f *fakeAdmin) WarmCache(_ context.Context, categories []string) (*models.WarmReport, error) {
	f.warmed = categories
	return &models.WarmReport{Warmed: map[string]int{"cabelo": 3}}, nil
}

type fakeEnqueuer struct{ got []string }

func (f *fakeEnqueuer) EnqueueWarm(_ context.Context, categories []string) (string, error) {
	f.got = categories
	return "task-1", nil
}

func newRouter(dh *DisambiguationHandler, ah *AdminHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/start", dh.StartHandler)
	r.POST("/turn", dh.TurnHandler)
	r.POST("/test", ah.TestInputHandler)
	r.POST("/dry-run", ah.DryRunHandler)
	r.GET("/stats", ah.StatsHandler)
	r.DELETE("/cache", ah.ClearCacheHandler)
	r.DELETE("/sessions", ah.ClearSessionsHandler)
	r.POST("/reload", ah.ReloadRulesHandler)
	r.POST("/warm", ah.WarmCacheHandler)
	return r
}

func perform(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartAndTurnHandlers(t *testing.T) {
	flow := &fakeFlow{}
	r := newRouter(NewDisambiguationHandler(flow), NewAdminHandler(&fakeAdmin{}, nil))

	w := perform(r, http.MethodPost, "/start", `{"user_id":"u-1","text":"cabelo","return_state":"ASK_DATE"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.SessionID)
	assert.Equal(t, "Qual?", resp.ResponseText)
	assert.Equal(t, "ASK_DATE", flow.last.ReturnState)

	w = perform(r, http.MethodPost, "/turn", `{"text":"2"}`, map[string]string{"X-Session-ID": "s-7"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-7", flow.last.SessionID)
	assert.Contains(t, w.Body.String(), `"completed":true`)

	w = perform(r, http.MethodPost, "/turn", `{"text":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTurnHandlerErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{session.ErrMissingSessionID, http.StatusBadRequest},
		{session.ErrSessionOwner, http.StatusForbidden},
		{errors.New("redis: connection refused"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		flow := &fakeFlow{err: tc.err}
		r := newRouter(NewDisambiguationHandler(flow), NewAdminHandler(&fakeAdmin{}, nil))
		w := perform(r, http.MethodPost, "/turn", `{"session_id":"s-1","text":"1"}`, nil)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}

	flow := &fakeFlow{err: errors.New("down")}
	r := newRouter(NewDisambiguationHandler(flow), NewAdminHandler(&fakeAdmin{}, nil))
	w := perform(r, http.MethodPost, "/start", `{"text":"cabelo"}`, nil)
	var resp models.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, disambiguation.LastResortText, resp.ResponseText)
	assert.Equal(t, disambiguation.CodeStoreUnavailable, resp.ErrorCode)
}

func TestAdminHandlers(t *testing.T) {
	svc := &fakeAdmin{}
	r := newRouter(NewDisambiguationHandler(&fakeFlow{}), NewAdminHandler(svc, nil))

	w := perform(r, http.MethodPost, "/test", `{"text":"CABELO"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"normalized":"cabelo"`)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/test", `{}`, nil).Code)

	w = perform(r, http.MethodPost, "/dry-run", `{"text":"unha"}`, nil)
	assert.Contains(t, w.Body.String(), "dry unha")

	w = perform(r, http.MethodGet, "/stats", "", nil)
	assert.JSONEq(t, `{"candidateCacheKeys":4,"sessions":2,"catalog":{"distinctCategories":0,"averagePopularity":0}}`, w.Body.String())

	w = perform(r, http.MethodDelete, "/cache?pattern=category:*", "", nil)
	assert.JSONEq(t, `{"deleted":3}`, w.Body.String())
	assert.Equal(t, "category:*", svc.clearPattern)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodDelete, "/sessions", "", nil).Code)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/reload", "", nil).Code)
	svc.reloadErr = &disambiguation.ConfigLoadError{Message: "invalid YAML"}
	assert.Equal(t, http.StatusUnprocessableEntity, perform(r, http.MethodPost, "/reload", "", nil).Code)

	svc.statsErr = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, perform(r, http.MethodGet, "/stats", "", nil).Code)
}

func TestWarmCacheHandler(t *testing.T) {
	svc := &fakeAdmin{}
	r := newRouter(NewDisambiguationHandler(&fakeFlow{}), NewAdminHandler(svc, nil))
	w := perform(r, http.MethodPost, "/warm", `{"categories":["cabelo"]}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cabelo"}, svc.warmed)

	enq := &fakeEnqueuer{}
	r = newRouter(NewDisambiguationHandler(&fakeFlow{}), NewAdminHandler(svc, enq))
	w = perform(r, http.MethodPost, "/warm", "", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"taskId":"task-1"}`, w.Body.String())
	assert.Nil(t, enq.got)
}
