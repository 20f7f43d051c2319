package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// handleWeather summarizes the next 24h of forecast for the farm location.
func (a *App) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat := queryCoord(r, "lat", a.cfg.WeatherLat)
	lon := queryCoord(r, "lon", a.cfg.WeatherLon)

	sum, err := a.weather.Forecast(r.Context(), lat, lon)
	var upErr *upstreamError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, weatherResp{Success: true, Weather: sum})
	case errors.Is(err, errWeatherNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &upErr):
		a.log.Warn("openweather error", zap.Int("status", upErr.Status))
		writeJSON(w, http.StatusBadGateway, errorResp{Error: "Weather API error", Detail: upErr.Body})
	case errors.Is(err, gobreaker.ErrOpenState):
		writeError(w, http.StatusServiceUnavailable, "Weather API unavailable")
	default:
		a.log.Error("weather fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// queryCoord takes a numeric query parameter or falls back to def.
func queryCoord(r *http.Request, key string, def float64) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
	}
	return coord(def)
}
