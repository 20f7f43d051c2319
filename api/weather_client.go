// file: weather_client.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

var errWeatherNotConfigured = errors.New("OPENWEATHER_API_KEY not configured")

// RainDelayMM is the 24h rainfall above which fertilizer should wait.
const RainDelayMM = 5.0

const rainDelayMessage = "Rain expected: Delay fertilizer application."

// upstreamError is a non-2xx answer from OpenWeather.
type upstreamError struct {
	Status int
	Body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("openweather status %d: %s", e.Status, e.Body)
}

// owmForecast is the subset of /data/2.5/forecast we read (3-hourly entries).
type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Rain *struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain,omitempty"`
	} `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// WeatherClient calls the OpenWeather forecast API behind a circuit breaker.
type WeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	now     func() time.Time
}

func newWeatherClient(apiKey, baseURL string) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweather",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		now: time.Now,
	}
}

// Forecast fetches the forecast for lat/lon and summarizes the next 24h.
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon string) (*WeatherSummary, error) {
	if c.apiKey == "" {
		return nil, errWeatherNotConfigured
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, lat, lon)
	})
	if err != nil {
		return nil, err
	}
	sum := summarizeForecast(res.(*owmForecast), c.now())
	return &sum, nil
}

func (c *WeatherClient) fetch(ctx context.Context, lat, lon string) (*owmForecast, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("weather url: %w", err)
	}
	q := u.Query()
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &upstreamError{Status: resp.StatusCode, Body: string(b)}
	}

	var out owmForecast
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode weather resp: %w", err)
	}
	return &out, nil
}

// summarizeForecast sums rain of entries within [now, now+24h] and flags a
// fertilizer delay above RainDelayMM.
func summarizeForecast(f *owmForecast, now time.Time) WeatherSummary {
	end := now.Add(24 * time.Hour)
	var rain float64
	for _, e := range f.List {
		t := time.Unix(e.Dt, 0)
		if t.Before(now) || t.After(end) {
			continue
		}
		if e.Rain != nil {
			rain += e.Rain.ThreeH
		}
	}

	sum := WeatherSummary{
		Location: f.City.Name,
		Rain24h:  rain,
	}
	if sum.Location == "" {
		sum.Location = "Local"
	}
	if len(f.List) > 0 {
		sum.Temp = f.List[0].Main.Temp
		if len(f.List[0].Weather) > 0 && f.List[0].Weather[0].Description != "" {
			d := f.List[0].Weather[0].Description
			sum.Description = &d
		}
	}
	if rain > RainDelayMM {
		sum.DelayFertilizer = true
		msg := rainDelayMessage
		sum.Message = &msg
	}
	return sum
}
