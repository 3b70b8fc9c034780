package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalstore "github.com/rmacdonaldsmith/eventstore-go/internal/eventstore"
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func seed(t *testing.T, setup *TestServerSetup) {
	t.Helper()
	for _, e := range []struct {
		typ string
		ts  int64
	}{{"A", 0}, {"A", 1}, {"B", 2}, {"B", 3}, {"A", 5}, {"A", 6}} {
		require.NoError(t, setup.Store.Insert(eventstore.NewEvent(e.typ, e.ts)))
	}
}

func timestamps(events []EventResponse) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Timestamp)
	}
	return out
}

func TestLogin(t *testing.T) {
	setup := NewTestServerSetup(t)

	t.Run("client", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", `{"clientId":"reader"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[AuthResponse](t, rec)
		assert.Equal(t, "reader", resp.ClientID)
		assert.NotEmpty(t, resp.Token)
		assert.False(t, resp.ExpiresAt.IsZero())

		claims, err := setup.Auth.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.False(t, claims.IsAdmin)
	})

	t.Run("admin", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", `{"clientId":"admin"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		claims, err := setup.Auth.ValidateToken(decode[AuthResponse](t, rec).Token)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin)
	})

	t.Run("short_client_id", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/auth/login", "", `{"clientId":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong_content_type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		setup.Server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "Content-Type must be application/json", resp.Message)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestInsertEvent(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "writer", false)

	t.Run("requires_auth", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/events", "", `{"type":"A","timestamp":1}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = setup.Do(t, http.MethodPost, "/api/v1/events", "not-a-token", `{"type":"A","timestamp":1}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/events", token, `{"type":"A","timestamp":42}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := decode[EventResponse](t, rec)
		assert.Equal(t, EventResponse{Type: "A", Timestamp: 42}, resp)
		assert.Equal(t, 1, setup.Store.Count("A"))
	})

	t.Run("zero_timestamp_is_valid", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/events", token, `{"type":"Z","timestamp":0}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	invalid := map[string]string{
		"missing_timestamp": `{"type":"A"}`,
		"missing_type":      `{"timestamp":1}`,
		"bad_type":          `{"type":"a b","timestamp":1}`,
		"malformed":         `{"type":`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			rec := setup.Do(t, http.MethodPost, "/api/v1/events", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInsertEvent_OutOfOrderRejected(t *testing.T) {
	setup := NewTestServerSetupWithConfig(t,
		internalstore.NewConfig().WithOrdering(eventstore.OrderingReject), Config{})
	token := setup.GenerateTestToken(t, "writer", false)

	rec := setup.Do(t, http.MethodPost, "/api/v1/events", token, `{"type":"A","timestamp":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = setup.Do(t, http.MethodPost, "/api/v1/events", token, `{"type":"A","timestamp":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, setup.Store.Count("A"))
}

func TestInsertEvent_ClosedStore(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "writer", false)
	require.NoError(t, setup.Store.Close())

	rec := setup.Do(t, http.MethodPost, "/api/v1/events", token, `{"type":"A","timestamp":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInsertEvents(t *testing.T) {
	setup := NewTestServerSetupWithConfig(t,
		internalstore.NewConfig().WithOrdering(eventstore.OrderingReject), Config{})
	token := setup.GenerateTestToken(t, "writer", false)

	t.Run("counts_rejections", func(t *testing.T) {
		body := `{"events":[{"type":"A","timestamp":1},{"type":"A","timestamp":3},{"type":"A","timestamp":2},{"type":"B","timestamp":0}]}`
		rec := setup.Do(t, http.MethodPost, "/api/v1/events/batch", token, body)
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := decode[BatchInsertResponse](t, rec)
		assert.Equal(t, BatchInsertResponse{Inserted: 3, Rejected: 1}, resp)
		assert.Equal(t, 2, setup.Store.Count("A"))
		assert.Equal(t, 1, setup.Store.Count("B"))
	})

	t.Run("empty", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPost, "/api/v1/events/batch", token, `{"events":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid_element_stores_nothing", func(t *testing.T) {
		body := `{"events":[{"type":"C","timestamp":1},{"type":"C"}]}`
		rec := setup.Do(t, http.MethodPost, "/api/v1/events/batch", token, body)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		assert.Contains(t, decode[ErrorResponse](t, rec).Message, "events[1]")
		assert.Equal(t, 0, setup.Store.Count("C"))
	})
}

func TestQueryEvents(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "reader", false)
	seed(t, setup)

	t.Run("half_open_range", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/A/events?start=0&end=4", token, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[QueryResponse](t, rec)
		assert.Equal(t, "A", resp.Type)
		assert.Equal(t, int64(0), resp.Start)
		assert.Equal(t, int64(4), resp.End)
		assert.Equal(t, []int64{0, 1}, timestamps(resp.Events))
		assert.Equal(t, 2, resp.Count)
		assert.False(t, resp.Truncated)
	})

	t.Run("end_is_exclusive", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/A/events?start=1&end=6", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []int64{1, 5}, timestamps(decode[QueryResponse](t, rec).Events))
	})

	t.Run("other_type_only", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/B/events?start=0&end=7", token, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[QueryResponse](t, rec)
		assert.Equal(t, []int64{2, 3}, timestamps(resp.Events))
		for _, e := range resp.Events {
			assert.Equal(t, "B", e.Type)
		}
	})

	t.Run("default_bounds", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/A/events", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []int64{0, 1, 5, 6}, timestamps(decode[QueryResponse](t, rec).Events))
	})

	t.Run("unknown_type", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/nope/events", token, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[QueryResponse](t, rec)
		assert.Empty(t, resp.Events)
		assert.Equal(t, 0, resp.Count)
		assert.Contains(t, rec.Body.String(), `"events":[]`)
	})

	t.Run("limit_truncates", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/A/events?limit=3", token, "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[QueryResponse](t, rec)
		assert.Equal(t, []int64{0, 1, 5}, timestamps(resp.Events))
		assert.True(t, resp.Truncated)
	})

	t.Run("limit_equal_to_result_is_not_truncated", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v1/types/A/events?limit=4", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[QueryResponse](t, rec).Truncated)
	})

	for name, target := range map[string]string{
		"bad_start":   "/api/v1/types/A/events?start=abc",
		"bad_end":     "/api/v1/types/A/events?end=1.5",
		"zero_limit":  "/api/v1/types/A/events?limit=0",
		"large_limit": "/api/v1/types/A/events?limit=100001",
	} {
		t.Run(name, func(t *testing.T) {
			rec := setup.Do(t, http.MethodGet, target, token, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Equal(t, 4, setup.Store.Count("A"), "queries must not mutate the store")
}

func TestListAndRemoveTypes(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "reader", false)
	seed(t, setup)

	rec := setup.Do(t, http.MethodGet, "/api/v1/types", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"A", "B"}, decode[TypesResponse](t, rec).Types)

	rec = setup.Do(t, http.MethodDelete, "/api/v1/types/A", token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	// idempotent
	rec = setup.Do(t, http.MethodDelete, "/api/v1/types/A", token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = setup.Do(t, http.MethodGet, "/api/v1/types", token, "")
	assert.Equal(t, []string{"B"}, decode[TypesResponse](t, rec).Types)
}

func TestPruneEvents(t *testing.T) {
	setup := NewTestServerSetup(t)
	token := setup.GenerateTestToken(t, "pruner", false)
	seed(t, setup)

	rec := setup.Do(t, http.MethodDelete, "/api/v1/types/A/events?start=1&end=6", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[PruneResponse](t, rec)
	assert.Equal(t, PruneResponse{Type: "A", Start: 1, End: 6, Removed: 2}, resp)

	rec = setup.Do(t, http.MethodGet, "/api/v1/types/A/events", token, "")
	assert.Equal(t, []int64{0, 6}, timestamps(decode[QueryResponse](t, rec).Events))

	// pruning everything leaves the same query empty
	rec = setup.Do(t, http.MethodDelete, "/api/v1/types/B/events", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[PruneResponse](t, rec).Removed)
	assert.Equal(t, 0, setup.Store.Count("B"))
}

func TestAdminStats(t *testing.T) {
	setup := NewTestServerSetupWithConfig(t, internalstore.NewConfig(), Config{NoAuth: true})
	seed(t, setup)

	rec := setup.Do(t, http.MethodGet, "/api/v1/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "admin endpoints are never bypassed")

	rec = setup.Do(t, http.MethodGet, "/api/v1/admin/stats", setup.GenerateTestToken(t, "reader", false), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = setup.Do(t, http.MethodGet, "/api/v1/admin/stats", setup.GenerateTestToken(t, "admin", true), "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StatsResponse](t, rec)
	assert.Equal(t, int64(6), resp.TotalEvents)
	assert.Equal(t, 2, resp.TypeCount)
	assert.Equal(t, map[string]int64{"A": 4, "B": 2}, resp.TypeCounts)
}

func TestNoAuthMode(t *testing.T) {
	setup := NewTestServerSetupWithConfig(t, internalstore.NewConfig(), Config{NoAuth: true})

	rec := setup.Do(t, http.MethodPost, "/api/v1/events", "", `{"type":"dev","timestamp":1}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, setup.Store.Count("dev"))
}

func TestHealth(t *testing.T) {
	setup := NewTestServerSetup(t)
	seed(t, setup)

	rec := setup.Do(t, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.True(t, resp.Healthy)
	assert.Equal(t, int64(6), resp.TotalEvents)
	assert.Equal(t, 2, resp.TypeCount)

	require.NoError(t, setup.Store.Close())

	rec = setup.Do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[HealthResponse](t, rec).Healthy)
}

func TestRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("eventstore_events 0\n"))
	})
	setup := NewTestServerSetupWithConfig(t, internalstore.NewConfig(), Config{MetricsHandler: metrics})

	t.Run("root", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "EventStore HTTP API")
	})

	t.Run("metrics", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/metrics", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "eventstore_events 0\n", rec.Body.String())
	})

	t.Run("cors_preflight", func(t *testing.T) {
		rec := setup.Do(t, http.MethodOptions, "/api/v1/events", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("method_not_allowed", func(t *testing.T) {
		rec := setup.Do(t, http.MethodPut, "/api/v1/events", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("unknown_path", func(t *testing.T) {
		rec := setup.Do(t, http.MethodGet, "/api/v2/nothing", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
