package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"farmalytica/api/predict"

	"go.uber.org/zap"
)

// handlePredict runs the soil classifier for one N/P/K/pH reading.
func (a *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predict.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.metrics.observePrediction("invalid", 0)
		writeError(w, http.StatusBadRequest, predict.ErrInvalidInput.Error())
		return
	}

	out, err := a.bridge.Predict(r.Context(), req)
	var (
		exitErr  *predict.ExitError
		spawnErr *predict.SpawnError
	)
	switch {
	case err == nil:
		if out.Structured {
			a.metrics.observePrediction("success", out.Duration)
			writeJSON(w, http.StatusOK, predictResp{Success: true, Prediction: out.Prediction})
			return
		}
		a.metrics.observePrediction("raw", out.Duration)
		writeJSON(w, http.StatusOK, predictResp{Prediction: out.Prediction})
	case errors.Is(err, predict.ErrInvalidInput):
		a.metrics.observePrediction("invalid", 0)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, predict.ErrTimeout):
		a.metrics.observePrediction("timeout", 0)
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &exitErr):
		a.metrics.observePrediction("exit_error", 0)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "AI Prediction Failed", Details: exitErr.Detail})
	case errors.As(err, &spawnErr):
		a.metrics.observePrediction("spawn_error", 0)
		writeError(w, http.StatusInternalServerError, spawnErr.Error())
	default:
		// client went away; nobody reads this
		a.log.Debug("prediction abandoned", zap.Error(err))
		a.metrics.observePrediction("cancelled", 0)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
