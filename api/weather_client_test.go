package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forecastJSON(now time.Time, rains ...float64) string {
	type entry struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []map[string]string `json:"weather"`
		Rain    map[string]float64  `json:"rain,omitempty"`
	}
	var list []entry
	for i, r := range rains {
		e := entry{Dt: now.Add(time.Duration(i*3) * time.Hour).Unix()}
		e.Main.Temp = 21.5
		e.Weather = []map[string]string{{"description": "light rain"}}
		if r > 0 {
			e.Rain = map[string]float64{"3h": r}
		}
		list = append(list, e)
	}
	b, _ := json.Marshal(map[string]any{"list": list, "city": map[string]string{"name": "Addis Ababa"}})
	return string(b)
}

func TestSummarizeForecastWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var f owmForecast
	// entries every 3h from +0h to +27h; +24h is inside the window, +27h is not
	require.NoError(t, json.Unmarshal([]byte(forecastJSON(now, 1, 1, 1, 0, 0, 0, 0, 0, 1, 6)), &f))

	sum := summarizeForecast(&f, now)
	assert.Equal(t, "Addis Ababa", sum.Location)
	assert.InDelta(t, 4.0, sum.Rain24h, 1e-9)
	assert.False(t, sum.DelayFertilizer)
	assert.Nil(t, sum.Message)
	require.NotNil(t, sum.Temp)
	assert.Equal(t, 21.5, *sum.Temp)
	require.NotNil(t, sum.Description)
	assert.Equal(t, "light rain", *sum.Description)
}

func TestSummarizeForecastDelay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var f owmForecast
	require.NoError(t, json.Unmarshal([]byte(forecastJSON(now, 3, 2.5)), &f))

	sum := summarizeForecast(&f, now)
	assert.True(t, sum.DelayFertilizer)
	require.NotNil(t, sum.Message)
	assert.Equal(t, "Rain expected: Delay fertilizer application.", *sum.Message)
}

func TestSummarizeForecastExactlyThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var f owmForecast
	require.NoError(t, json.Unmarshal([]byte(forecastJSON(now, 2.5, 2.5)), &f))
	assert.False(t, summarizeForecast(&f, now).DelayFertilizer)
}

func TestSummarizeForecastEmpty(t *testing.T) {
	sum := summarizeForecast(&owmForecast{}, time.Now())
	assert.Equal(t, "Local", sum.Location)
	assert.Nil(t, sum.Temp)
	assert.Nil(t, sum.Description)
	assert.Zero(t, sum.Rain24h)
}

func TestWeatherEndpoint(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, forecastJSON(now, 4, 4))
	}))
	defer srv.Close()

	a := newTestApp(t, nil)
	a.weather = newWeatherClient("k3y", srv.URL)
	a.weather.now = func() time.Time { return now }

	rec := do(t, a.routes(), http.MethodGet, "/api/weather?lat=8.5&lon=39.2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out weatherResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, 8.0, out.Weather.Rain24h)
	assert.True(t, out.Weather.DelayFertilizer)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"8.5"}, q["lat"])
	assert.Equal(t, []string{"39.2"}, q["lon"])
	assert.Equal(t, []string{"k3y"}, q["appid"])
	assert.Equal(t, []string{"metric"}, q["units"])
}

func TestWeatherEndpointDefaultsCoordinates(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, `{"list":[]}`)
	}))
	defer srv.Close()

	a := newTestApp(t, nil)
	a.weather = newWeatherClient("k3y", srv.URL)

	rec := do(t, a.routes(), http.MethodGet, "/api/weather?lat=north", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"9.03"}, q["lat"])
	assert.Equal(t, []string{"38.74"}, q["lon"])
}

func TestWeatherNotConfigured(t *testing.T) {
	rec := do(t, newTestApp(t, nil).routes(), http.MethodGet, "/api/weather", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "OPENWEATHER_API_KEY not configured", decode(t, rec)["error"])
}

func TestWeatherUpstreamErrorAndBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"cod":401,"message":"Invalid API key"}`)
	}))
	defer srv.Close()

	a := newTestApp(t, nil)
	a.weather = newWeatherClient("bad", srv.URL)
	h := a.routes()

	for i := 0; i < 3; i++ {
		rec := do(t, h, http.MethodGet, "/api/weather", nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, "Weather API error", out["error"])
		assert.Contains(t, out["detail"], "Invalid API key")
	}

	// breaker is open now; upstream is not called again
	rec := do(t, h, http.MethodGet, "/api/weather", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int32(3), hits.Load())
}
