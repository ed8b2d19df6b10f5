package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRequest(target, apiKey string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req
}

func TestHandleStats_RequiresKey(t *testing.T) {
	f := newFixture(t)

	rr := doRequest(t, f.admin.HandleStats, adminRequest("/admin/stats", ""))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleStats_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t)

	rr := doRequest(t, f.admin.HandleStats, adminRequest("/admin/stats", testRawKey))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeFailure(t, rr).Error)
}

func TestHandleStats_RejectsDisabledAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.keys.Disable(context.Background(), adminRawKey)
	require.NoError(t, err)

	rr := doRequest(t, f.admin.HandleStats, adminRequest("/admin/stats", adminRawKey))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleStats_ReturnsCounters(t *testing.T) {
	f := newFixture(t)

	f.metrics.RequestsTotal.WithLabelValues("success").Inc()
	f.trail.Append("predict", "user1234", "req-1", nil)

	rr := doRequest(t, f.admin.HandleStats, adminRequest("/admin/stats", adminRawKey))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	data := decodeSuccess(t, rr)

	counters, ok := data["counters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), counters["gateway_requests_total{outcome=success}"])
	assert.Equal(t, float64(1), data["audit_entries"])
	assert.Equal(t, float64(0), data["archive_dropped"])
}

func TestHandleAuditVerify_AllChains(t *testing.T) {
	f := newFixture(t)

	f.trail.Append("predict", "user1234", "req-1", nil)
	f.trail.Append("predict", "user1234", "req-1", nil)
	f.trail.Append("predict", "user5678", "req-2", nil)

	rr := doRequest(t, f.admin.HandleAuditVerify, adminRequest("/admin/audit/verify", adminRawKey))

	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeSuccess(t, rr)
	assert.Equal(t, true, data["valid"])
}

func TestHandleAuditVerify_SingleResource(t *testing.T) {
	f := newFixture(t)

	f.trail.Append("predict", "user1234", "req-1", nil)

	rr := doRequest(t, f.admin.HandleAuditVerify,
		adminRequest("/admin/audit/verify?resource_id=req-1", adminRawKey))

	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeSuccess(t, rr)
	assert.Equal(t, "req-1", data["resource_id"])
	assert.Equal(t, true, data["valid"])
}

func TestHandleAuditVerify_RequiresAdmin(t *testing.T) {
	f := newFixture(t)

	rr := doRequest(t, f.admin.HandleAuditVerify, adminRequest("/admin/audit/verify", testRawKey))

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
