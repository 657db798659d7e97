package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

const londonPayload = `{
  "name": "London",
  "main": {"temp": 15.5, "feels_like": 14.0, "temp_min": 12.0, "temp_max": 18.0, "humidity": 65},
  "weather": [{"description": "partly cloudy"}],
  "wind": {"speed": 3.5}
}`

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c := NewClient(model.WeatherConfig{APIKey: "secret", BaseURL: srv.URL + "/data/2.5/weather", Timeout: timeout})
	c.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestClient_FetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/2.5/weather", r.URL.Path)
		require.Equal(t, "London", r.URL.Query().Get("q"))
		require.Equal(t, "secret", r.URL.Query().Get("appid"))
		require.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(londonPayload))
	}))
	defer srv.Close()

	got := newTestClient(t, srv, time.Second).Fetch(context.Background(), "London")

	report, ok := got.(*model.WeatherReport)
	require.True(t, ok, "expected report, got %#v", got)
	require.Equal(t, &model.WeatherReport{
		City:        "London",
		Temperature: 15.5,
		FeelsLike:   14.0,
		TempMin:     12.0,
		TempMax:     18.0,
		Humidity:    65,
		Description: "partly cloudy",
		WindSpeed:   3.5,
		Timestamp:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}, report)
}

func TestClient_FetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	got := newTestClient(t, srv, time.Second).Fetch(context.Background(), "Atlantis")

	msg, ok := model.WeatherErrorOf(got)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(msg, ErrorPrefix), msg)
	require.Contains(t, msg, "404")
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	got := newTestClient(t, srv, 50*time.Millisecond).Fetch(context.Background(), "London")

	msg, ok := model.WeatherErrorOf(got)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(msg, ErrorPrefix), msg)
}

func TestClient_FetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"London","weather":[]}`))
	}))
	defer srv.Close()

	got := newTestClient(t, srv, time.Second).Fetch(context.Background(), " ")

	_, ok := model.WeatherErrorOf(got)
	require.True(t, ok)
}
