package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"farmalytica/api/advice"
	"farmalytica/api/models"
	"farmalytica/api/predict"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// adviceLevels reads the four levels leniently: anything that is not a
// finite number becomes NaN and is skipped by the engine.
func adviceLevels(req adviceReq) advice.Levels {
	lenient := func(raw json.RawMessage) float64 {
		if v, ok := predict.Coerce(raw); ok {
			return v
		}
		return math.NaN()
	}
	return advice.Levels{
		N:  lenient(req.N),
		P:  lenient(req.P),
		K:  lenient(req.K),
		PH: lenient(req.PH),
	}
}

// farmArea returns the configured farm size, or 1 ha when none is stored.
func (a *App) farmArea(ctx context.Context) float64 {
	if a.farm == nil {
		return models.DefaultFarmArea
	}
	var s models.FarmSettings
	err := a.farm.FindOne(ctx, bson.M{}).Decode(&s)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			a.log.Warn("farm settings lookup failed", zap.Error(err))
		}
		return models.DefaultFarmArea
	}
	if s.AreaHa <= 0 {
		return models.DefaultFarmArea
	}
	return s.AreaHa
}

// handleAdvice returns advisories and the fertilizer plan for a reading.
func (a *App) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var req adviceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	lv := adviceLevels(req)
	label := advice.ParseLabel(req.Prediction)

	area, ok := predict.Coerce(req.AreaHa)
	if !ok {
		ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
		area = a.farmArea(ctx)
		cancel()
	}

	writeJSON(w, http.StatusOK, adviceResp{
		Success:   true,
		Advice:    advice.Recommend(lv, label),
		Plan:      advice.Plan(lv, area),
		TaskTitle: advice.TaskTitle(lv, area),
	})
}

// handleTaskFromAdvice schedules the primary fertilizer action as a task.
func (a *App) handleTaskFromAdvice(w http.ResponseWriter, r *http.Request) {
	var req adviceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	lv := adviceLevels(req)
	label := advice.ParseLabel(req.Prediction)

	note := a.weatherNote(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	area, ok := predict.Coerce(req.AreaHa)
	if !ok {
		area = a.farmArea(ctx)
	}

	t := models.Task{
		Title:       advice.TaskTitle(lv, area),
		Description: advice.Report(lv, label, area, note),
		Status:      models.TaskPending,
		Category:    "fertilizer",
		CreatedFrom: "recommendation",
		CreatedAt:   time.Now(),
	}
	res, err := a.tasks.InsertOne(ctx, &t)
	if err != nil {
		a.log.Error("insert task failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	writeJSON(w, http.StatusCreated, taskResp{Success: true, Task: &t})
}

// weatherNote is the forecast line for a task report. Weather problems
// never block scheduling.
func (a *App) weatherNote(ctx context.Context) string {
	if a.weather == nil || a.weather.apiKey == "" {
		return ""
	}
	sum, err := a.weather.Forecast(ctx, coord(a.cfg.WeatherLat), coord(a.cfg.WeatherLon))
	if err != nil {
		a.log.Warn("weather unavailable for task report", zap.Error(err))
		return ""
	}
	if sum.DelayFertilizer && sum.Message != nil {
		return *sum.Message
	}
	var b strings.Builder
	b.WriteString("No significant rain expected in the next 24h")
	if sum.Description != nil {
		b.WriteString(" (" + *sum.Description + ")")
	}
	b.WriteString(".")
	return b.String()
}

func coord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
