// Package anomaly flags unusually expensive days in a cost series.
package anomaly

import "math"

// Multiplier is the number of population standard deviations above the mean
// a day must exceed to be flagged.
const Multiplier = 1.5

// Point is one day of spend.
type Point struct {
	Date    string  `json:"date"`
	CostUSD float64 `json:"cost_usd"`
	Anomaly bool    `json:"anomaly"`
}

// Report is the annotated series with the statistics used to flag it.
type Report struct {
	Daily       []Point
	Mean        float64
	StdDev      float64
	Threshold   float64
	AnomalyDays []Point
	Total       float64
}

// Annotate computes mean + Multiplier*population stddev over the series and flags every
// point whose cost is strictly above it. The input slice is not modified.
func Annotate(points []Point) Report {
	report := Report{
		Daily:       make([]Point, len(points)),
		AnomalyDays: []Point{},
	}
	copy(report.Daily, points)
	if len(points) == 0 {
		return report
	}

	n := float64(len(points))
	for _, p := range points {
		report.Total += p.CostUSD
	}
	report.Mean = report.Total / n

	var sq float64
	for _, p := range points {
		d := p.CostUSD - report.Mean
		sq += d * d
	}
	report.StdDev = math.Sqrt(sq / n)
	report.Threshold = report.Mean + Multiplier*report.StdDev

	for i := range report.Daily {
		report.Daily[i].Anomaly = report.Daily[i].CostUSD > report.Threshold
		if report.Daily[i].Anomaly {
			report.AnomalyDays = append(report.AnomalyDays, report.Daily[i])
		}
	}
	return report
}
