package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apifactory/llm-gateway/internal/metrics"
	"github.com/apifactory/llm-gateway/services/archive"
	"github.com/apifactory/llm-gateway/services/audit"
	"github.com/apifactory/llm-gateway/services/gateway"
	"github.com/apifactory/llm-gateway/services/keys"
	"github.com/apifactory/llm-gateway/services/model"
	"github.com/apifactory/llm-gateway/services/privacy"
	"github.com/apifactory/llm-gateway/services/ratelimit"
	"github.com/apifactory/llm-gateway/services/retention"
	"github.com/apifactory/llm-gateway/store"
	"github.com/apifactory/llm-gateway/utils"
)

const (
	testRawKey  = "abcdefgh-ijklmnop-qrstuvwx-yz012345"
	adminRawKey = "admin000-ijklmnop-qrstuvwx-yz012345"
)

// fixture wires real services behind the handlers so the tests exercise the
// same assembly the router uses.
type fixture struct {
	predict *PredictHandler
	health  *HealthHandler
	admin   *AdminHandler
	keys    *keys.Service
	trail   *audit.Trail
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sink := archive.NopSink{}
	keySvc := keys.NewService(store.NewMemoryStore(), sink, keys.Config{}, zap.NewNop())
	trail := audit.NewTrail(audit.Config{MaxEntries: 100}, nil, nil, zap.NewNop())
	m := metrics.New()

	svc := gateway.NewService(gateway.Config{
		MaxInputChars:     1000,
		MaxOutputChars:    2000,
		ToxicityThreshold: 0.7,
		DefaultModel:      "standard-v1",
		AllowedModels:     []string{"standard-v1", "compact-v1"},
		ModelTimeout:      time.Second,
	}, keySvc,
		ratelimit.NewMemoryLimiter(ratelimit.Config{Window: time.Minute, Requests: 1000}),
		privacy.NewManager(), retention.NewManager(sink), trail,
		&model.SimulatedAdapter{}, m, zap.NewNop())

	ctx := context.Background()
	_, err := keySvc.Create(ctx, testRawKey, "alice", "pro", false, nil)
	require.NoError(t, err)
	_, err = keySvc.Create(ctx, adminRawKey, "ops", "pro", true, nil)
	require.NoError(t, err)

	return &fixture{
		predict: NewPredictHandler(svc, zap.NewNop()),
		health:  NewHealthHandler(keySvc, zap.NewNop()),
		admin:   NewAdminHandler(keySvc, trail, m, func() int64 { return 0 }, zap.NewNop()),
		keys:    keySvc,
		trail:   trail,
		metrics: m,
	}
}

// failingStore simulates an unreachable backend for fail-closed paths.
type failingStore struct{}

func (failingStore) GetAll(context.Context, string) (map[string]string, error) {
	return nil, errors.New("store: connection refused")
}

func (failingStore) Set(context.Context, string, map[string]string) error {
	return errors.New("store: connection refused")
}

func (failingStore) SetField(context.Context, string, string, string) error {
	return errors.New("store: connection refused")
}

func (failingStore) IncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, errors.New("store: connection refused")
}

func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errors.New("store: connection refused")
}

func doRequest(t *testing.T, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeSuccess(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "response data is not an object: %s", rr.Body.String())
	return data
}

func decodeFailure(t *testing.T, rr *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}
