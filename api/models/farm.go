package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FarmSettings is the single farm profile. Area drives fertilizer totals.
type FarmSettings struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name"          json:"name"`
	AreaHa      float64            `bson:"areaHa"        json:"areaHa"`      // hectares
	PrimaryCrop string             `bson:"primaryCrop"   json:"primaryCrop"` // Maize | Teff | ...
	UpdatedAt   time.Time          `bson:"updatedAt"     json:"updatedAt"`
}

const (
	DefaultFarmName  = "My Farm"
	DefaultFarmArea  = 1.0
	DefaultFarmCrop  = "Maize"
	DefaultStockUnit = "kg"
)

// InventoryItem is fertilizer stock on hand.
type InventoryItem struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name       string             `bson:"name"          json:"name"`
	QuantityKg float64            `bson:"quantityKg"    json:"quantityKg"`
	Unit       string             `bson:"unit"          json:"unit"`
	CreatedAt  time.Time          `bson:"createdAt"     json:"createdAt"`
}

// DefaultInventory is inserted when the inventory collection is empty.
func DefaultInventory(now time.Time) []InventoryItem {
	return []InventoryItem{
		{Name: "Urea", QuantityKg: 5, Unit: DefaultStockUnit, CreatedAt: now},
		{Name: "DAP", QuantityKg: 20, Unit: DefaultStockUnit, CreatedAt: now},
		{Name: "MOP", QuantityKg: 8, Unit: DefaultStockUnit, CreatedAt: now},
	}
}

// TaskStatus is pending until the farmer marks it done.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool { return s == TaskPending || s == TaskCompleted }

// Task is a scheduled farm action, manual or generated from advice.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"         json:"_id"`
	Title       string             `bson:"title"                 json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Status      TaskStatus         `bson:"status"                json:"status"`
	Category    string             `bson:"category"              json:"category"`    // general | fertilizer | soil
	CreatedFrom string             `bson:"createdFrom"           json:"createdFrom"` // manual | recommendation
	CreatedAt   time.Time          `bson:"createdAt"             json:"createdAt"`
}

// User is a dashboard account. The password hash never leaves the server.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username"      json:"username"`
	Email        string             `bson:"email"         json:"email"`
	PasswordHash string             `bson:"passwordHash"  json:"-"`
	CreatedAt    time.Time          `bson:"createdAt"     json:"createdAt"`
}
