package advice

import (
	"fmt"
	"strconv"
	"strings"
)

// Per-hectare application rates used when a nutrient is in its low band.
const (
	UreaKgPerHa      = 50.0
	PhosphateKgPerHa = 30.0
	MOPKgPerHa       = 40.0
)

// PlanLine is one fertilizer amount for the whole farm.
type PlanLine struct {
	Nutrient Nutrient `json:"nutrient"`
	Product  string   `json:"product"`
	RateKgHa float64  `json:"rateKgHa"`
	TotalKg  float64  `json:"totalKg"`
}

// Plan returns fertilizer totals for every nutrient in its low band, in N, P, K order.
// areaHa <= 0 is treated as one hectare.
func Plan(levels Levels, areaHa float64) []PlanLine {
	area := normArea(areaHa)
	recs := Recommend(levels, LabelUnknown)
	var out []PlanLine
	for _, p := range products {
		if a, ok := Find(recs, p.nutrient); ok && a.Band == BandLow {
			out = append(out, PlanLine{p.nutrient, p.name, p.rate, p.rate * area})
		}
	}
	return out
}

var products = []struct {
	nutrient Nutrient
	name     string
	rate     float64
}{
	{Nitrogen, "Urea", UreaKgPerHa},
	{Phosphorus, "Phosphate (DAP/TSP)", PhosphateKgPerHa},
	{Potassium, "MOP", MOPKgPerHa},
}

// TaskTitle names the primary action for a scheduled task.
func TaskTitle(levels Levels, areaHa float64) string {
	lines := Plan(levels, areaHa)
	if len(lines) == 0 {
		return "Follow recommendation"
	}
	l := lines[0]
	return fmt.Sprintf("Apply %skg of %s (%skg per hectare)", num(l.TotalKg), l.Product, num(l.RateKgHa))
}

// Report renders a markdown description for a recommendation task.
// weatherNote may be empty.
func Report(levels Levels, prediction Label, areaHa float64, weatherNote string) string {
	recs := Recommend(levels, prediction)

	var b strings.Builder
	b.WriteString("## Soil Diagnosis\n")
	for _, text := range Texts(recs) {
		fmt.Fprintf(&b, "**Why**: %s\n", text)
	}
	fmt.Fprintf(&b, "\n**Details**:\n- N: %s mg/kg\n- P: %s mg/kg\n- K: %s mg/kg\n- pH: %s\n",
		num(levels.N), num(levels.P), num(levels.K), num(levels.PH))

	b.WriteString("\n## Action Plan\n**Step-by-step**:\n")
	b.WriteString("- Soil test confirms need: apply recommended fertilizer based on soil test and crop stage.\n")
	b.WriteString("- Suggested approach: split N applications (e.g., 50% at planting, 25% at tillering, 25% at panicle initiation) when N is low.\n")
	b.WriteString("- Apply P as single dose at planting if low; apply K at planting or side-dress if low.\n")

	b.WriteString("\n## Weather Impact\n")
	if weatherNote != "" {
		fmt.Fprintf(&b, "**Weather Impact**: %s\n", weatherNote)
	} else {
		b.WriteString("**Weather Impact**: No significant rain expected in the next 24h\n")
	}

	if lines := Plan(levels, areaHa); len(lines) > 0 {
		area := normArea(areaHa)
		b.WriteString("\n## Fertilizer Calculation\n")
		for _, l := range lines {
			fmt.Fprintf(&b, "- %s: %s kg/ha × %s ha = **%s kg**\n", l.Product, num(l.RateKgHa), num(area), num(l.TotalKg))
		}
	}
	return b.String()
}

func normArea(a float64) float64 {
	if !finite(a) || a <= 0 {
		return 1
	}
	return a
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
