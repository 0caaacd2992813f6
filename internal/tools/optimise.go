package tools

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// MinOptimisableCost is the spend a service needs before a rule applies
const MinOptimisableCost = 50.0

type rule struct {
	service string
	saving  float64
	tip     string
}

var rules = []rule{
	{"Virtual Machines", 0.30, "Switch to 1-year Reserved Instances for steady VMs, typically saving 30-40%"},
	{"Azure Kubernetes Service", 0.20, "Enable the cluster autoscaler and move tolerant workloads to Spot node pools"},
	{"Azure SQL Database", 0.25, "Apply Azure Hybrid Benefit to existing SQL Server licences for about 25% off"},
	{"Azure Blob Storage", 0.40, "Move rarely read blobs to the Cool or Archive tier, saving 40-70%"},
	{"Azure Monitor", 0.30, "Shorten log retention and drop noisy logs at the source"},
	{"Azure App Service", 0.20, "Consolidate App Service plans or move bursty apps to consumption Functions"},
	{"Azure Load Balancer", 0.15, "Remove unused load balancers and stale rules"},
}

// RuleOptimiser applies a fixed saving rate per service
type RuleOptimiser struct{}

func (RuleOptimiser) Optimise(_ context.Context, costData *ServiceBreakdown) (*Optimisations, error) {
	costs := make(map[string]float64, len(costData.Services))
	for _, s := range costData.Services {
		costs[s.Service] = s.CostUSD
	}

	recs := []Recommendation{}
	potential := decimal.Zero
	for _, r := range rules {
		cost, ok := costs[r.service]
		if !ok || cost <= MinOptimisableCost {
			continue
		}
		saving := decimal.NewFromFloat(cost).Mul(decimal.NewFromFloat(r.saving)).Round(2)
		est, _ := saving.Float64()
		recs = append(recs, Recommendation{Service: r.service, CurrentCost: cost, Tip: r.tip, EstSavingUSD: est})
		potential = potential.Add(saving)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].EstSavingUSD > recs[j].EstSavingUSD })

	out := &Optimisations{
		TotalSpendUSD:   costData.TotalUSD,
		Recommendations: recs,
		source:          costData.Source,
	}
	out.PotentialSavingsUSD, _ = potential.Round(2).Float64()
	if costData.TotalUSD != 0 {
		pct := potential.Mul(decimal.NewFromInt(100)).Div(decimal.NewFromFloat(costData.TotalUSD))
		out.SavingsPctOfTotal, _ = pct.Round(1).Float64()
	}
	return out, nil
}
