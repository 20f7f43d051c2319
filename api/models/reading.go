package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadingSource tells where a soil reading came from.
type ReadingSource string

const (
	SourceHTTP ReadingSource = "http"
	SourceMQTT ReadingSource = "mqtt"
)

// SoilReading is one probe measurement as stored in "soil_readings".
// Field names match what the firmware and dashboard send.
type SoilReading struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"        json:"_id"`
	Nitrogen    float64            `bson:"nitrogen"             json:"nitrogen"`   // mg/kg
	Phosphorus  float64            `bson:"phosphorus"           json:"phosphorus"` // mg/kg
	Potassium   float64            `bson:"potassium"            json:"potassium"`  // mg/kg
	PH          float64            `bson:"pH"                   json:"pH"`
	EC          float64            `bson:"ec"                   json:"ec"`          // uS/cm
	Moisture    float64            `bson:"moisture"             json:"moisture"`    // %
	Temperature float64            `bson:"temperature"          json:"temperature"` // degC
	Prediction  string             `bson:"prediction,omitempty" json:"prediction,omitempty"`
	Source      ReadingSource      `bson:"source,omitempty"     json:"source,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"            json:"createdAt"`
}

// ReadingInput is the wire form of a new reading; every field is required.
type ReadingInput struct {
	Nitrogen    *float64 `json:"nitrogen"`
	Phosphorus  *float64 `json:"phosphorus"`
	Potassium   *float64 `json:"potassium"`
	PH          *float64 `json:"pH"`
	EC          *float64 `json:"ec"`
	Moisture    *float64 `json:"moisture"`
	Temperature *float64 `json:"temperature"`
	Prediction  string   `json:"prediction,omitempty"`
}

// Reading converts the input, reporting false when a field is missing.
func (in ReadingInput) Reading(src ReadingSource, now time.Time) (SoilReading, bool) {
	for _, v := range []*float64{in.Nitrogen, in.Phosphorus, in.Potassium, in.PH, in.EC, in.Moisture, in.Temperature} {
		if v == nil {
			return SoilReading{}, false
		}
	}
	return SoilReading{
		Nitrogen:    *in.Nitrogen,
		Phosphorus:  *in.Phosphorus,
		Potassium:   *in.Potassium,
		PH:          *in.PH,
		EC:          *in.EC,
		Moisture:    *in.Moisture,
		Temperature: *in.Temperature,
		Prediction:  in.Prediction,
		Source:      src,
		CreatedAt:   now,
	}, true
}
