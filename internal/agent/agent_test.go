package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"finops-agent/internal/anomaly"
	"finops-agent/internal/models"
	"finops-agent/internal/tools"
)

// scriptedLLM replies from a queue per prompt kind; the last reply repeats once the queue is drained
type scriptedLLM struct {
	mu       sync.Mutex
	plans    []string
	answers  []string
	verdicts []string
	calls    map[string]int
	err      error
}

func (s *scriptedLLM) next(kind string, queue []string) string {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	i := s.calls[kind]
	s.calls[kind]++
	if len(queue) == 0 {
		return ""
	}
	return queue[min(i, len(queue)-1)]
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	switch {
	case strings.HasPrefix(prompt, models.PlannerPreamble):
		return s.next("plan", s.plans), nil
	case strings.HasPrefix(prompt, models.SynthesizerPreamble):
		return s.next("answer", s.answers), nil
	case strings.HasPrefix(prompt, models.CriticPreamble):
		return s.next("verdict", s.verdicts), nil
	}
	return "", errors.New("unexpected prompt")
}

func (s *scriptedLLM) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

type staticRetriever struct {
	results []models.RetrievalResult
	err     error
	calls   int
}

func (r *staticRetriever) Query(context.Context, string, int) ([]models.RetrievalResult, error) {
	r.calls++
	return r.results, r.err
}

// sequenceProvider returns a different breakdown on every call so stale data is detectable
type sequenceProvider struct {
	serviceCalls int
}

func (p *sequenceProvider) CostByService(context.Context) (*tools.ServiceBreakdown, error) {
	p.serviceCalls++
	return &tools.ServiceBreakdown{
		Source:   tools.SourceAzure,
		Period:   "2026-09-01 to 2026-09-30",
		Services: []tools.ServiceCost{{Service: "Virtual Machines", CostUSD: 100 * float64(p.serviceCalls)}},
	}, nil
}

func (p *sequenceProvider) DailyCosts(context.Context) (*tools.DailySeries, error) {
	return &tools.DailySeries{
		Source: tools.SourceAzure,
		Period: "2026-09-01 to 2026-09-03",
		Points: []anomaly.Point{{Date: "2026-09-01", CostUSD: 10}, {Date: "2026-09-02", CostUSD: 12}, {Date: "2026-09-03", CostUSD: 11}},
	}, nil
}

func (p *sequenceProvider) CostByResourceGroup(context.Context) (*tools.ResourceGroupBreakdown, error) {
	return &tools.ResourceGroupBreakdown{
		Source:         tools.SourceAzure,
		Period:         "2026-09-01 to 2026-09-30",
		ResourceGroups: []tools.ResourceGroupCost{{ResourceGroup: "rg-prod", CostUSD: 50}},
	}, nil
}

type failingProvider struct{ sequenceProvider }

func (failingProvider) CostByService(context.Context) (*tools.ServiceBreakdown, error) {
	return nil, errors.New("billing api unavailable")
}
