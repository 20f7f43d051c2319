// Package advice turns soil measurements into fertilizer guidance.
//
// Recommend is pure: fixed thresholds per nutrient and pH band, no I/O.
package advice

import (
	"math"
	"strings"
)

// Levels holds nutrient concentrations (mg/kg) and soil acidity.
// A non-finite value means "not measured" and is skipped.
type Levels struct {
	N  float64 `json:"N"`
	P  float64 `json:"P"`
	K  float64 `json:"K"`
	PH float64 `json:"pH"`
}

// Label is the coarse soil-health class produced by the external classifier.
type Label string

const (
	LabelOptimal Label = "Optimal"
	LabelAverage Label = "Average"
	LabelPoor    Label = "Poor"
	LabelUnknown Label = ""
)

// ParseLabel accepts only the literal class names. Numeric codes and anything
// else map to LabelUnknown.
func ParseLabel(s string) Label {
	switch l := Label(strings.TrimSpace(s)); l {
	case LabelOptimal, LabelAverage, LabelPoor:
		return l
	default:
		return LabelUnknown
	}
}

// Nutrient tags an advisory so callers can find it without searching its text.
type Nutrient string

const (
	Nitrogen   Nutrient = "nitrogen"
	Phosphorus Nutrient = "phosphorus"
	Potassium  Nutrient = "potassium"
	Acidity    Nutrient = "ph"
	General    Nutrient = "general"
)

// Band names the threshold band that produced an advisory.
type Band string

const (
	BandLow        Band = "low"
	BandModerate   Band = "moderate"
	BandOptimal    Band = "optimal"
	BandAcidic     Band = "acidic"
	BandOffOptimal Band = "off_optimal"
	BandAlkaline   Band = "alkaline"
	BandFallback   Band = "fallback"
)

// Advice is one human-readable advisory plus its structured tags.
type Advice struct {
	Nutrient Nutrient `json:"nutrient"`
	Band     Band     `json:"band"`
	Text     string   `json:"text"`
}

// step is one half-open band [.., below) of a nutrient ladder.
type step struct {
	below float64
	band  Band
	text  string
}

var (
	nitrogenLadder = []step{
		{25, BandLow, "Nitrogen is low (N < 25 mg/kg) — apply a nitrogen fertilizer appropriate for your crop (e.g., urea) and increase organic matter such as compost; use split applications to reduce leaching."},
		{50, BandModerate, "Nitrogen is moderate (25 ≤ N < 50 mg/kg) — apply maintenance N according to crop demand and monitor growth responses."},
		{100, BandOptimal, "Nitrogen is in the Optimal range (50 ≤ N < 100 mg/kg) — maintain current management and avoid over-application."},
	}
	phosphorusLadder = []step{
		{15, BandLow, "Phosphorus is low (P < 15 mg/kg) — apply phosphate fertilizer (e.g., TSP or DAP) and incorporate organic amendments; banding improves efficiency."},
		{35, BandModerate, "Phosphorus is moderate (15 ≤ P < 35 mg/kg) — consider maintenance P fertilization when crop demand is high."},
		{75, BandOptimal, "Phosphorus is in the Optimal range (35 ≤ P < 75 mg/kg) — maintain current management and monitor tissue tests if needed."},
	}
	potassiumLadder = []step{
		{60, BandLow, "Potassium is low (K < 60 mg/kg) — apply potassium fertilizer (e.g., muriate of potash) according to crop need; monitor for crop response."},
		{130, BandModerate, "Potassium is moderate (60 ≤ K < 130 mg/kg) — maintain K as needed for crop demand."},
		{250, BandOptimal, "Potassium is in the Optimal range (130 ≤ K < 250 mg/kg) — avoid excess application; follow crop-specific recommendations."},
	}
)

const (
	acidicText     = "Soil is acidic (pH < 5.5) — apply agricultural lime to move pH toward ~6.5; consult local guidelines for rate."
	offOptimalText = "Soil pH is slightly off-optimal — minor corrective measures (small lime or organic amendments) may help maintain nutrient availability."
	alkalineText   = "Soil is alkaline (pH > 7.8) — consider practices to improve acidity or nutrient availability (organic matter, gypsum where appropriate); consult an agronomist."

	FallbackOptimal = "Nutrient levels look good — maintain current management and monitor regularly."
	FallbackAverage = "Overall status suggests attention is needed — run a detailed lab analysis, check recent management practices, and consult local agronomic guidance."
	FallbackOther   = "Soil status indicates potential problems — seek a detailed soil test and agronomic advice for targeted remediation."
)

// Recommend returns advisories in N, P, K, pH order. When no band matches it
// returns exactly one fallback keyed on the prediction, so the result is never empty.
func Recommend(levels Levels, prediction Label) []Advice {
	var out []Advice
	if a, ok := climb(Nitrogen, levels.N, nitrogenLadder); ok {
		out = append(out, a)
	}
	if a, ok := climb(Phosphorus, levels.P, phosphorusLadder); ok {
		out = append(out, a)
	}
	if a, ok := climb(Potassium, levels.K, potassiumLadder); ok {
		out = append(out, a)
	}
	if a, ok := acidity(levels.PH); ok {
		out = append(out, a)
	}
	if len(out) == 0 {
		out = append(out, fallback(prediction))
	}
	return out
}

// Find returns the first advisory tagged with n.
func Find(list []Advice, n Nutrient) (Advice, bool) {
	for _, a := range list {
		if a.Nutrient == n {
			return a, true
		}
	}
	return Advice{}, false
}

// Texts flattens advisories to their display strings.
func Texts(list []Advice) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Text
	}
	return out
}

func climb(n Nutrient, v float64, ladder []step) (Advice, bool) {
	if !finite(v) {
		return Advice{}, false
	}
	for _, s := range ladder {
		if v < s.below {
			return Advice{Nutrient: n, Band: s.band, Text: s.text}, true
		}
	}
	return Advice{}, false
}

func acidity(ph float64) (Advice, bool) {
	switch {
	case !finite(ph):
		return Advice{}, false
	case ph < 5.5:
		return Advice{Nutrient: Acidity, Band: BandAcidic, Text: acidicText}, true
	case ph > 7.8:
		return Advice{Nutrient: Acidity, Band: BandAlkaline, Text: alkalineText}, true
	case ph < 6.0, ph > 7.5:
		return Advice{Nutrient: Acidity, Band: BandOffOptimal, Text: offOptimalText}, true
	}
	return Advice{}, false
}

func fallback(prediction Label) Advice {
	a := Advice{Nutrient: General, Band: BandFallback}
	switch prediction {
	case LabelOptimal:
		a.Text = FallbackOptimal
	case LabelAverage:
		a.Text = FallbackAverage
	default:
		a.Text = FallbackOther
	}
	return a
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
