package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"farmalytica/api/models"
	"farmalytica/api/predict"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// handleGetFarm returns the farm profile, or null settings before the first save.
func (a *App) handleGetFarm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	var s models.FarmSettings
	if err := a.farm.FindOne(ctx, bson.M{}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			writeJSON(w, http.StatusOK, farmResp{Success: true})
			return
		}
		a.log.Error("load farm settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load farm settings")
		return
	}
	writeJSON(w, http.StatusOK, farmResp{Success: true, Settings: &s})
}

// applyFarm merges a request into existing settings. Empty fields keep the
// previous value.
func applyFarm(s *models.FarmSettings, req farmReq) error {
	if name := strings.TrimSpace(req.Name); name != "" {
		s.Name = name
	}
	if crop := strings.TrimSpace(req.PrimaryCrop); crop != "" {
		s.PrimaryCrop = crop
	}
	if len(req.AreaHa) > 0 && string(req.AreaHa) != "null" {
		v, ok := predict.Coerce(req.AreaHa)
		if !ok || v <= 0 {
			return errors.New("Invalid areaHa")
		}
		s.AreaHa = v
	}
	return nil
}

// handleSaveFarm upserts the singleton farm profile.
func (a *App) handleSaveFarm(w http.ResponseWriter, r *http.Request) {
	var req farmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	s := models.FarmSettings{
		Name:        models.DefaultFarmName,
		AreaHa:      models.DefaultFarmArea,
		PrimaryCrop: models.DefaultFarmCrop,
	}
	// validate before touching the store so a bad body costs nothing
	if err := applyFarm(&models.FarmSettings{}, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	err := a.farm.FindOne(ctx, bson.M{}).Decode(&s)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		a.log.Error("load farm settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save farm settings")
		return
	}
	_ = applyFarm(&s, req)
	s.UpdatedAt = time.Now()

	if s.ID.IsZero() {
		res, err := a.farm.InsertOne(ctx, &s)
		if err != nil {
			a.log.Error("insert farm settings failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to save farm settings")
			return
		}
		s.ID = res.InsertedID.(primitive.ObjectID)
	} else if _, err := a.farm.ReplaceOne(ctx, bson.M{"_id": s.ID}, &s); err != nil {
		a.log.Error("update farm settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save farm settings")
		return
	}
	writeJSON(w, http.StatusOK, farmResp{Success: true, Settings: &s})
}
