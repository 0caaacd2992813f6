package tools

import (
	"context"
	"math"
	"math/rand"
	"time"

	"finops-agent/internal/anomaly"
)

const (
	dateLayout = "2006-01-02"

	// DefaultLookbackDays is the reporting window of every provider
	DefaultLookbackDays = 30
)

// CostProvider supplies the raw figures behind the data tools
type CostProvider interface {
	CostByService(ctx context.Context) (*ServiceBreakdown, error)
	DailyCosts(ctx context.Context) (*DailySeries, error)
	CostByResourceGroup(ctx context.Context) (*ResourceGroupBreakdown, error)
}

func period(from, to time.Time) string {
	return from.Format(dateLayout) + " to " + to.Format(dateLayout)
}

var syntheticServices = []ServiceCost{
	{Service: "Azure Kubernetes Service", CostUSD: 1420.50},
	{Service: "Virtual Machines", CostUSD: 980.30},
	{Service: "Azure SQL Database", CostUSD: 650.75},
	{Service: "Azure Blob Storage", CostUSD: 310.20},
	{Service: "Azure Load Balancer", CostUSD: 215.00},
	{Service: "Azure Monitor", CostUSD: 175.60},
	{Service: "Azure App Service", CostUSD: 145.90},
	{Service: "Azure Key Vault", CostUSD: 42.30},
	{Service: "Azure Container Registry", CostUSD: 38.10},
	{Service: "Azure Virtual Network", CostUSD: 21.50},
}

var syntheticGroups = []ResourceGroupCost{
	{ResourceGroup: "rg-production", CostUSD: 2180.40},
	{ResourceGroup: "rg-staging", CostUSD: 620.15},
	{ResourceGroup: "rg-data-platform", CostUSD: 510.30},
	{ResourceGroup: "rg-monitoring", CostUSD: 175.60},
	{ResourceGroup: "rg-dev", CostUSD: 113.70},
}

// SpikeDays are the series offsets the synthetic provider inflates
var SpikeDays = []int{7, 21}

const (
	syntheticSeed  = 42
	syntheticSpike = 280.0
)

// SyntheticProvider returns fixed demo figures. The daily series is seeded so every call is identical.
type SyntheticProvider struct {
	Now func() time.Time
}

func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{Now: time.Now}
}

func (p *SyntheticProvider) today() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (p *SyntheticProvider) period() string {
	today := p.today()
	return period(today.AddDate(0, 0, -DefaultLookbackDays), today)
}

func (p *SyntheticProvider) CostByService(context.Context) (*ServiceBreakdown, error) {
	services := make([]ServiceCost, len(syntheticServices))
	copy(services, syntheticServices)
	return &ServiceBreakdown{Source: SourceMock, Period: p.period(), Services: services}, nil
}

func (p *SyntheticProvider) CostByResourceGroup(context.Context) (*ResourceGroupBreakdown, error) {
	groups := make([]ResourceGroupCost, len(syntheticGroups))
	copy(groups, syntheticGroups)
	return &ResourceGroupBreakdown{Source: SourceMock, Period: p.period(), ResourceGroups: groups}, nil
}

func (p *SyntheticProvider) DailyCosts(context.Context) (*DailySeries, error) {
	rng := rand.New(rand.NewSource(syntheticSeed))
	today := p.today()
	points := make([]anomaly.Point, DefaultLookbackDays)
	for i := range points {
		base := 130 + 20*math.Sin(float64(i)/7)
		noise := -10 + 20*rng.Float64()
		spike := 0.0
		for _, d := range SpikeDays {
			if i == d {
				spike = syntheticSpike
			}
		}
		points[i] = anomaly.Point{
			Date:    today.AddDate(0, 0, i-(DefaultLookbackDays-1)).Format(dateLayout),
			CostUSD: roundUSD(base + noise + spike),
		}
	}
	return &DailySeries{Source: SourceMock, Period: p.period(), Points: points}, nil
}
