package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skyrag-assistant/server/internal/agent/model"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

// ErrorPrefix starts every WeatherError message produced by the client.
const ErrorPrefix = "Weather API error: "

// openWeatherResponse is the subset of the OpenWeatherMap payload we read.
type openWeatherResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Client fetches current conditions from OpenWeatherMap.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	now        func() time.Time
}

// NewClient builds a client with the configured endpoint, key and timeout.
func NewClient(cfg model.WeatherConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		now:        time.Now,
	}
}

// Fetch returns the current weather for city. Failures are returned as a
// *model.WeatherError value, never as a Go error.
func (c *Client) Fetch(ctx context.Context, city string) model.WeatherData {
	report, err := c.fetch(ctx, city)
	if err != nil {
		logx.Warn().Err(err).Str("city", city).Msg("Weather lookup failed")
		return &model.WeatherError{Message: ErrorPrefix + err.Error()}
	}
	logx.Debug().Str("city", report.City).Float64("temperature", report.Temperature).Msg("Weather lookup succeeded")
	return report
}

func (c *Client) fetch(ctx context.Context, city string) (*model.WeatherReport, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s for city %q", resp.Status, city)
	}

	var body openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Weather) == 0 {
		return nil, fmt.Errorf("response has no weather description")
	}

	return &model.WeatherReport{
		City:        body.Name,
		Temperature: body.Main.Temp,
		FeelsLike:   body.Main.FeelsLike,
		TempMin:     body.Main.TempMin,
		TempMax:     body.Main.TempMax,
		Humidity:    body.Main.Humidity,
		Description: body.Weather[0].Description,
		WindSpeed:   body.Wind.Speed,
		Timestamp:   c.now(),
	}, nil
}
