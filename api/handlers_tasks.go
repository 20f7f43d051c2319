package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"farmalytica/api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// handleListTasks returns every task, newest first.
func (a *App) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	cur, err := a.tasks.Find(ctx, bson.M{}, newestFirst)
	if err != nil {
		a.log.Error("list tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load tasks")
		return
	}
	defer cur.Close(ctx)

	tasks := []models.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		a.log.Error("decode tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load tasks")
		return
	}
	writeJSON(w, http.StatusOK, taskListResp{Success: true, Tasks: tasks})
}

// handleCreateTask schedules a manual task.
func (a *App) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "Missing title")
		return
	}

	t := models.Task{
		Title:       title,
		Description: req.Description,
		Status:      models.TaskPending,
		Category:    orDefault(req.Category, "general"),
		CreatedFrom: orDefault(req.CreatedFrom, "manual"),
		CreatedAt:   time.Now(),
	}
	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()
	res, err := a.tasks.InsertOne(ctx, &t)
	if err != nil {
		a.log.Error("insert task failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}
	t.ID = res.InsertedID.(primitive.ObjectID)
	writeJSON(w, http.StatusCreated, taskResp{Success: true, Task: &t})
}

// handlePatchTask moves a task between pending and completed.
func (a *App) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	var req taskPatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.ID) == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "Missing id or status")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	id, err := primitive.ObjectIDFromHex(req.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	var t models.Task
	err = a.tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": req.Status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		a.log.Error("update task failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, taskResp{Success: true, Task: &t})
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
