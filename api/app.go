package main

import (
	"context"
	"fmt"
	"time"

	"farmalytica/api/predict"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	cfg       Config
	log       *zap.Logger
	metrics   *Metrics
	mongo     *mongo.Client
	db        *mongo.Database
	users     *mongo.Collection
	farm      *mongo.Collection
	inventory *mongo.Collection
	tasks     *mongo.Collection
	readings  *mongo.Collection

	bridge  *predict.Bridge
	weather *WeatherClient
	series  *readingSeries // nil unless Influx is configured
}

func newApp(ctx context.Context, cfg Config, log *zap.Logger) (*App, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	// The driver connects lazily; ping until the server answers.
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(func() error {
		if err := client.Ping(ctx, nil); err != nil {
			log.Warn("mongo ping failed", zap.Error(err))
			return err
		}
		return nil
	}, bo); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo unreachable: %w", err)
	}

	db := client.Database(cfg.MongoDB)
	app := &App{
		cfg:       cfg,
		log:       log,
		metrics:   newMetrics(),
		mongo:     client,
		db:        db,
		users:     db.Collection("users"),
		farm:      db.Collection("farm_settings"),
		inventory: db.Collection("inventory"),
		tasks:     db.Collection("tasks"),
		readings:  db.Collection("soil_readings"),
		bridge: predict.New(predict.Config{
			Python:  cfg.PythonPath,
			Script:  cfg.PredictScript,
			Timeout: cfg.PredictTimeout,
		}, predict.ExecRunner{}, log.Named("predict")),
		weather: newWeatherClient(cfg.WeatherAPIKey, cfg.WeatherURL),
	}

	// Indexes
	if _, err := app.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}
	for _, c := range []*mongo.Collection{app.inventory, app.tasks, app.readings} {
		if _, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		}); err != nil {
			return nil, err
		}
	}

	if cfg.InfluxURL != "" && cfg.InfluxToken != "" {
		app.series = newReadingSeries(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		log.Info("mirroring readings to influx", zap.String("url", cfg.InfluxURL), zap.String("bucket", cfg.InfluxBucket))
	}
	log.Info("OpenWeather API key present", zap.Bool("present", cfg.WeatherAPIKey != ""))
	return app, nil
}

// dbTimeout bounds a single handler's Mongo work.
const dbTimeout = 5 * time.Second

func (a *App) close(ctx context.Context) {
	if a.series != nil {
		a.series.close()
	}
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
	}
}
