package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"farmalytica/api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// recentReadings is how many readings the dashboard charts.
const recentReadings = 10

// handleListReadings returns the most recent probe readings, newest first.
func (a *App) handleListReadings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(recentReadings)
	cur, err := a.readings.Find(ctx, bson.M{}, opts)
	if err != nil {
		a.log.Error("list readings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}
	defer cur.Close(ctx)

	readings := []models.SoilReading{}
	if err := cur.All(ctx, &readings); err != nil {
		a.log.Error("decode readings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}
	writeJSON(w, http.StatusOK, readingListResp{Success: true, Readings: readings})
}

// handleCreateReading stores one reading posted by the dashboard or a probe.
func (a *App) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var in models.ReadingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	reading, ok := in.Reading(models.SourceHTTP, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	if err := a.storeReading(ctx, &reading); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save reading")
		return
	}
	writeJSON(w, http.StatusCreated, readingResp{Success: true, Reading: &reading})
}

// storeReading persists a reading and mirrors it to the time-series store.
// Only the Mongo insert can fail the call.
func (a *App) storeReading(ctx context.Context, reading *models.SoilReading) error {
	res, err := a.readings.InsertOne(ctx, reading)
	if err != nil {
		a.log.Error("insert reading failed", zap.String("source", string(reading.Source)), zap.Error(err))
		return err
	}
	reading.ID = res.InsertedID.(primitive.ObjectID)
	a.metrics.ingested.WithLabelValues(string(reading.Source)).Inc()

	if a.series != nil {
		if err := a.series.write(ctx, *reading); err != nil {
			a.log.Warn("influx mirror failed", zap.String("id", reading.ID.Hex()), zap.Error(err))
		}
	}
	return nil
}
