package main

import (
	"encoding/json"

	"farmalytica/api/advice"
	"farmalytica/api/models"
)

// Request/response DTOs. Keep them minimal and explicit.

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token string `json:"token"`
}

type farmReq struct {
	Name        string          `json:"name"`
	AreaHa      json.RawMessage `json:"areaHa,omitempty"` // number or numeric string
	PrimaryCrop string          `json:"primaryCrop"`
}

type farmResp struct {
	Success  bool                 `json:"success"`
	Settings *models.FarmSettings `json:"settings"`
}

type inventoryReq struct {
	Name       string          `json:"name"`
	QuantityKg json.RawMessage `json:"quantityKg,omitempty"`
}

type inventoryPatchReq struct {
	ID         string          `json:"id"`
	QuantityKg json.RawMessage `json:"quantityKg"`
}

type inventoryListResp struct {
	Success bool                   `json:"success"`
	Items   []models.InventoryItem `json:"items"`
}

type inventoryItemResp struct {
	Success bool                  `json:"success"`
	Item    *models.InventoryItem `json:"item"`
}

type taskReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CreatedFrom string `json:"createdFrom"`
}

type taskPatchReq struct {
	ID     string            `json:"id"`
	Status models.TaskStatus `json:"status"`
}

type taskListResp struct {
	Success bool          `json:"success"`
	Tasks   []models.Task `json:"tasks"`
}

type taskResp struct {
	Success bool         `json:"success"`
	Task    *models.Task `json:"task"`
}

type readingListResp struct {
	Success  bool                 `json:"success"`
	Readings []models.SoilReading `json:"readings"`
}

type readingResp struct {
	Success bool                `json:"success"`
	Reading *models.SoilReading `json:"reading"`
}

// adviceReq takes levels as raw values: anything non-numeric is skipped, not rejected.
type adviceReq struct {
	N          json.RawMessage `json:"N"`
	P          json.RawMessage `json:"P"`
	K          json.RawMessage `json:"K"`
	PH         json.RawMessage `json:"pH"`
	Prediction string          `json:"prediction"`
	AreaHa     json.RawMessage `json:"areaHa,omitempty"` // number or numeric string
}

type adviceResp struct {
	Success   bool              `json:"success"`
	Advice    []advice.Advice   `json:"advice"`
	Plan      []advice.PlanLine `json:"plan"`
	TaskTitle string            `json:"taskTitle"`
}

type predictResp struct {
	Success    bool   `json:"success,omitempty"`
	Prediction string `json:"prediction"`
}

// WeatherSummary is what the dashboard shows next to the advice.
type WeatherSummary struct {
	Location        string   `json:"location"`
	Temp            *float64 `json:"temp"`
	Description     *string  `json:"description"`
	Rain24h         float64  `json:"rain24h"`
	DelayFertilizer bool     `json:"delayFertilizer"`
	Message         *string  `json:"message"`
}

type weatherResp struct {
	Success bool            `json:"success"`
	Weather *WeatherSummary `json:"weather"`
}
