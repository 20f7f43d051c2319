package main

import (
	"context"

	"farmalytica/api/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const readingMeasurement = "soil_reading"

// readingSeries mirrors stored readings into an InfluxDB bucket so they can
// be charted over long ranges. Mongo stays the source of truth.
type readingSeries struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func newReadingSeries(url, token, org, bucket string) *readingSeries {
	client := influxdb2.NewClient(url, token)
	return &readingSeries{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (s *readingSeries) write(ctx context.Context, r models.SoilReading) error {
	return s.writeAPI.WritePoint(ctx, readingPoint(r))
}

func (s *readingSeries) close() { s.client.Close() }

func readingPoint(r models.SoilReading) *write.Point {
	tags := map[string]string{"source": string(r.Source)}
	if r.Prediction != "" {
		tags["prediction"] = r.Prediction
	}
	fields := map[string]interface{}{
		"nitrogen":    r.Nitrogen,
		"phosphorus":  r.Phosphorus,
		"potassium":   r.Potassium,
		"ph":          r.PH,
		"ec":          r.EC,
		"moisture":    r.Moisture,
		"temperature": r.Temperature,
	}
	return influxdb2.NewPoint(readingMeasurement, tags, fields, r.CreatedAt)
}
