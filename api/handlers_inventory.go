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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var newestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

// quantity reads an optional stock amount; absent means zero.
func quantity(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, true
	}
	v, ok := predict.Coerce(raw)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// handleListInventory lists stock, seeding the default fertilizers on first use.
func (a *App) handleListInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	items, err := a.listInventory(ctx)
	if err == nil && len(items) == 0 {
		seed := models.DefaultInventory(time.Now())
		docs := make([]interface{}, len(seed))
		for i := range seed {
			docs[i] = seed[i]
		}
		if _, err = a.inventory.InsertMany(ctx, docs); err == nil {
			a.log.Info("seeded default inventory", zap.Int("items", len(docs)))
			items, err = a.listInventory(ctx)
		}
	}
	if err != nil {
		a.log.Error("list inventory failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load inventory")
		return
	}
	writeJSON(w, http.StatusOK, inventoryListResp{Success: true, Items: items})
}

func (a *App) listInventory(ctx context.Context) ([]models.InventoryItem, error) {
	cur, err := a.inventory.Find(ctx, bson.M{}, newestFirst)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := []models.InventoryItem{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// handleCreateInventory adds a fertilizer to stock.
func (a *App) handleCreateInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}
	qty, ok := quantity(req.QuantityKg)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid quantityKg")
		return
	}

	item := models.InventoryItem{
		Name:       name,
		QuantityKg: qty,
		Unit:       models.DefaultStockUnit,
		CreatedAt:  time.Now(),
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	res, err := a.inventory.InsertOne(ctx, &item)
	if err != nil {
		a.log.Error("insert inventory failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to add item")
		return
	}
	item.ID = res.InsertedID.(primitive.ObjectID)
	writeJSON(w, http.StatusCreated, inventoryItemResp{Success: true, Item: &item})
}

// handlePatchInventory sets the quantity on hand for one item.
func (a *App) handlePatchInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryPatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}
	id, err := primitive.ObjectIDFromHex(req.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}
	// unlike create, an update must name the new quantity
	if len(req.QuantityKg) == 0 || string(req.QuantityKg) == "null" {
		writeError(w, http.StatusBadRequest, "Invalid quantityKg")
		return
	}
	qty, ok := quantity(req.QuantityKg)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid quantityKg")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	var item models.InventoryItem
	err = a.inventory.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"quantityKg": qty}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		a.log.Error("update inventory failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, inventoryItemResp{Success: true, Item: &item})
}
