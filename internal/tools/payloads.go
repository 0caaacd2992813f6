package tools

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"finops-agent/internal/anomaly"
)

const (
	SourceMock   = "mock"
	SourceAzure  = "azure_api"
	SourceExport = "export"

	// MaxServices caps the services listed in a breakdown; the total still covers all of them
	MaxServices = 15
)

// roundUSD rounds half away from zero to cents
func roundUSD(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

type ServiceCost struct {
	Service string  `json:"service"`
	CostUSD float64 `json:"cost_usd"`
}

type ServiceBreakdown struct {
	Source   string        `json:"source"`
	Period   string        `json:"period"`
	TotalUSD float64       `json:"total_usd"`
	Services []ServiceCost `json:"services"`
}

func (b *ServiceBreakdown) DataSource() string { return b.Source }

func (b *ServiceBreakdown) MarshalZerologObject(e *zerolog.Event) {
	e.Str("source", b.Source).Str("period", b.Period).Float64("total_usd", b.TotalUSD).Int("services", len(b.Services))
}

// finishServices sorts by cost, rounds, totals and caps the list
func finishServices(b *ServiceBreakdown) *ServiceBreakdown {
	out := *b
	out.Services = make([]ServiceCost, len(b.Services))
	total := decimal.Zero
	for i, s := range b.Services {
		out.Services[i] = ServiceCost{Service: s.Service, CostUSD: roundUSD(s.CostUSD)}
		total = total.Add(decimal.NewFromFloat(out.Services[i].CostUSD))
	}
	sort.SliceStable(out.Services, func(i, j int) bool { return out.Services[i].CostUSD > out.Services[j].CostUSD })
	if len(out.Services) > MaxServices {
		out.Services = out.Services[:MaxServices]
	}
	out.TotalUSD, _ = total.Round(2).Float64()
	return &out
}

type ResourceGroupCost struct {
	ResourceGroup string  `json:"resource_group"`
	CostUSD       float64 `json:"cost_usd"`
}

type ResourceGroupBreakdown struct {
	Source         string              `json:"source"`
	Period         string              `json:"period"`
	ResourceGroups []ResourceGroupCost `json:"resource_groups"`
	TotalUSD       float64             `json:"total_usd"`
}

func (b *ResourceGroupBreakdown) DataSource() string { return b.Source }

func (b *ResourceGroupBreakdown) MarshalZerologObject(e *zerolog.Event) {
	e.Str("source", b.Source).Str("period", b.Period).Float64("total_usd", b.TotalUSD).Int("resource_groups", len(b.ResourceGroups))
}

func finishGroups(b *ResourceGroupBreakdown) *ResourceGroupBreakdown {
	out := *b
	out.ResourceGroups = make([]ResourceGroupCost, len(b.ResourceGroups))
	total := decimal.Zero
	for i, g := range b.ResourceGroups {
		out.ResourceGroups[i] = ResourceGroupCost{ResourceGroup: g.ResourceGroup, CostUSD: roundUSD(g.CostUSD)}
		total = total.Add(decimal.NewFromFloat(out.ResourceGroups[i].CostUSD))
	}
	sort.SliceStable(out.ResourceGroups, func(i, j int) bool {
		return out.ResourceGroups[i].CostUSD > out.ResourceGroups[j].CostUSD
	})
	out.TotalUSD, _ = total.Round(2).Float64()
	return &out
}

// DailySeries is the raw per-day spend returned by a provider
type DailySeries struct {
	Source string
	Period string
	Points []anomaly.Point
}

type DailyTrend struct {
	Source              string          `json:"source"`
	Period              string          `json:"period"`
	Daily               []anomaly.Point `json:"daily"`
	MeanDailyUSD        float64         `json:"mean_daily_usd"`
	StdDevUSD           float64         `json:"std_dev_usd"`
	AnomalyThresholdUSD float64         `json:"anomaly_threshold_usd"`
	AnomalyDays         []anomaly.Point `json:"anomaly_days"`
	TotalUSD            float64         `json:"total_usd"`
}

// NewDailyTrend annotates series; flags are computed on unrounded statistics
func NewDailyTrend(series *DailySeries) *DailyTrend {
	report := anomaly.Annotate(series.Points)
	return &DailyTrend{
		Source:              series.Source,
		Period:              series.Period,
		Daily:               report.Daily,
		MeanDailyUSD:        roundUSD(report.Mean),
		StdDevUSD:           roundUSD(report.StdDev),
		AnomalyThresholdUSD: roundUSD(report.Threshold),
		AnomalyDays:         report.AnomalyDays,
		TotalUSD:            roundUSD(report.Total),
	}
}

func (d *DailyTrend) DataSource() string { return d.Source }

func (d *DailyTrend) MarshalZerologObject(e *zerolog.Event) {
	e.Str("source", d.Source).Str("period", d.Period).Int("days", len(d.Daily)).
		Int("anomaly_days", len(d.AnomalyDays)).Float64("anomaly_threshold_usd", d.AnomalyThresholdUSD)
}

type Recommendation struct {
	Service      string  `json:"service"`
	CurrentCost  float64 `json:"current_cost"`
	Tip          string  `json:"tip"`
	EstSavingUSD float64 `json:"est_saving_usd"`
}

type Optimisations struct {
	TotalSpendUSD       float64          `json:"total_spend_usd"`
	PotentialSavingsUSD float64          `json:"potential_savings_usd"`
	SavingsPctOfTotal   float64          `json:"savings_pct_of_total"`
	Recommendations     []Recommendation `json:"recommendations"`

	source string
}

func (o *Optimisations) DataSource() string { return o.source }

func (o *Optimisations) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("potential_savings_usd", o.PotentialSavingsUSD).Int("recommendations", len(o.Recommendations))
}

// Combined is the payload when the optimisation tool ran on a breakdown from the same dispatch
type Combined struct {
	CostData      *ServiceBreakdown `json:"cost_data"`
	Optimisations *Optimisations    `json:"optimisations"`
}

func (c *Combined) DataSource() string { return c.CostData.Source }

func (c *Combined) MarshalZerologObject(e *zerolog.Event) {
	e.Object("cost_data", c.CostData).Object("optimisations", c.Optimisations)
}
