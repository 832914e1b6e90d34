package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plancal/internal/config"
	"plancal/internal/eventcache"
	"plancal/internal/model"
	"plancal/internal/planner"
	"plancal/internal/timeline"
	"plancal/internal/web"
)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, cfg *config.Config, events []model.Event) *httptest.Server {
	t.Helper()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.Normalize()

	svc := planner.New(time.UTC, eventcache.DefaultFilter())
	require.NoError(t, svc.LinkAccount(model.AccountPersonal, func(ctx context.Context, start, end time.Time) ([]model.Event, error) {
		return events, nil
	}))

	server := httptest.NewServer(web.NewServer(cfg, svc, true).Handler())
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func Test_Health_Is_OK(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil, nil)
	resp := getJSON(t, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_Api_Events_Returns_Week_Buckets(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{ID: "e1", Account: model.AccountPersonal, Title: "Lunch",
			Start: at(2024, 3, 5, 12, 0), End: at(2024, 3, 5, 13, 0)},
	}
	server := newTestServer(t, nil, events)

	var resp struct {
		Kind      string `json:"kind"`
		WeekStart string `json:"week_start"`
		Days      []struct {
			Date   string `json:"date"`
			Events []struct {
				ID      string `json:"id"`
				Account string `json:"account"`
			} `json:"events"`
		} `json:"days"`
	}
	httpResp := getJSON(t, server.URL+"/api/events?kind=week&anchor=2024-03-05", &resp)

	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Equal(t, "week", resp.Kind)
	assert.Equal(t, "monday", resp.WeekStart)
	require.Len(t, resp.Days, 7)
	assert.Equal(t, "2024-03-04", resp.Days[0].Date, "week starts on Monday")

	require.Len(t, resp.Days[1].Events, 1)
	assert.Equal(t, "e1", resp.Days[1].Events[0].ID)
	assert.Equal(t, "personal", resp.Days[1].Events[0].Account)
}

func Test_Api_Events_Rejects_Bad_Input(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil, nil)

	resp := getJSON(t, server.URL+"/api/events?kind=decade", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, server.URL+"/api/events?anchor=tuesday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func Test_Api_Timeline_Returns_Slot_Geometry(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{ID: "a", Account: model.AccountPersonal, Title: "Workshop",
			Start: at(2024, 3, 5, 9, 0), End: at(2024, 3, 5, 10, 0)},
		{ID: "b", Account: model.AccountPersonal, Title: "Call",
			Start: at(2024, 3, 5, 9, 30), End: at(2024, 3, 5, 10, 30)},
	}
	server := newTestServer(t, nil, events)

	var resp struct {
		Date         string `json:"date"`
		SlotsPerDay  int    `json:"slots_per_day"`
		UnitsPerSlot int    `json:"units_per_slot"`
		Events       []struct {
			StartSlot   int `json:"start_slot"`
			EndSlot     int `json:"end_slot"`
			ColumnCount int `json:"column_count"`
		} `json:"events"`
	}
	httpResp := getJSON(t, server.URL+"/api/timeline?date=2024-03-05", &resp)

	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Equal(t, "2024-03-05", resp.Date)
	assert.Equal(t, timeline.SlotsPerDay, resp.SlotsPerDay)
	assert.Equal(t, timeline.UnitsPerSlot, resp.UnitsPerSlot)

	require.Len(t, resp.Events, 2)
	assert.Equal(t, 18, resp.Events[0].StartSlot)
	assert.Equal(t, 20, resp.Events[0].EndSlot)
	assert.Equal(t, 2, resp.Events[0].ColumnCount)
}

func Test_Timeline_Page_Renders_Ready_Marker(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{ID: "a", Account: model.AccountPersonal, Title: "Workshop",
			Start: at(2024, 3, 5, 9, 0), End: at(2024, 3, 5, 10, 0)},
	}
	server := newTestServer(t, nil, events)

	resp, err := http.Get(server.URL + "/timeline?date=2024-03-05")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `data-ready="true"`, "capture waits for this marker")
	assert.Contains(t, string(body), "Workshop")
}

func Test_Api_Refresh_Requires_Post(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil, nil)

	resp := getJSON(t, server.URL+"/api/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	postResp, err := http.Post(server.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer postResp.Body.Close()
	assert.Equal(t, http.StatusOK, postResp.StatusCode)
}

func Test_BasicAuth_Guards_Api_But_Not_Health(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "u", Password: "p"}
	server := newTestServer(t, cfg, nil)

	resp := getJSON(t, server.URL+"/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getJSON(t, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/events?anchor=2024-03-05", nil)
	require.NoError(t, err)
	req.SetBasicAuth("u", "p")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
