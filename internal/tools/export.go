package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"finops-agent/internal/anomaly"
)

// header aliases seen in portal and scheduled exports
var exportColumns = map[string][]string{
	"date":           {"date", "usagedate", "billingperiodstartdate"},
	"service":        {"servicename", "service", "metercategory"},
	"resource_group": {"resourcegroupname", "resourcegroup"},
	"cost":           {"cost", "costusd", "costinbillingcurrency", "pretaxcost"},
}

var ErrEmptyExport = errors.New("cost export holds no rows")

type exportRow struct {
	date, service, group string
	cost                 float64
}

// ExportProvider aggregates a downloaded cost export workbook. The file is read on every call.
type ExportProvider struct {
	path string
}

func NewExportProvider(path string) *ExportProvider {
	return &ExportProvider{path: path}
}

func (p *ExportProvider) load() ([]exportRow, string, error) {
	f, err := excelize.OpenFile(p.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open cost export: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cost export: %w", err)
	}
	if len(rows) < 2 {
		return nil, "", ErrEmptyExport
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(h), " ", ""))
		for col, aliases := range exportColumns {
			for _, a := range aliases {
				if _, seen := idx[col]; !seen && key == a {
					idx[col] = i
				}
			}
		}
	}
	if _, ok := idx["cost"]; !ok {
		return nil, "", errors.New("cost export has no cost column")
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []exportRow
	var first, last string
	for _, row := range rows[1:] {
		cost, err := strconv.ParseFloat(cell(row, "cost"), 64)
		if err != nil {
			continue
		}
		r := exportRow{date: exportDate(cell(row, "date")), service: cell(row, "service"), group: cell(row, "resource_group"), cost: cost}
		if r.date != "" {
			if first == "" || r.date < first {
				first = r.date
			}
			if r.date > last {
				last = r.date
			}
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, "", ErrEmptyExport
	}
	return out, first + " to " + last, nil
}

// exportDate normalises a date cell to YYYY-MM-DD, or "" when it is missing or unparseable
func exportDate(s string) string {
	if d := usageDate(s); d != "" {
		if _, err := time.Parse(time.DateOnly, d); err == nil {
			return d
		}
	}
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return t.Format(time.DateOnly)
	}
	return ""
}

// sum groups costs by key in first-seen order
func sum(rows []exportRow, key func(exportRow) string) ([]string, map[string]float64) {
	var order []string
	totals := map[string]float64{}
	for _, r := range rows {
		k := key(r)
		if k == "" {
			k = "Unknown"
		}
		if _, ok := totals[k]; !ok {
			order = append(order, k)
		}
		totals[k] += r.cost
	}
	return order, totals
}

func (p *ExportProvider) CostByService(context.Context) (*ServiceBreakdown, error) {
	rows, label, err := p.load()
	if err != nil {
		return nil, err
	}
	order, totals := sum(rows, func(r exportRow) string { return r.service })
	out := &ServiceBreakdown{Source: SourceExport, Period: label, Services: make([]ServiceCost, 0, len(order))}
	for _, k := range order {
		out.Services = append(out.Services, ServiceCost{Service: k, CostUSD: totals[k]})
	}
	return out, nil
}

func (p *ExportProvider) CostByResourceGroup(context.Context) (*ResourceGroupBreakdown, error) {
	rows, label, err := p.load()
	if err != nil {
		return nil, err
	}
	order, totals := sum(rows, func(r exportRow) string { return r.group })
	out := &ResourceGroupBreakdown{Source: SourceExport, Period: label, ResourceGroups: make([]ResourceGroupCost, 0, len(order))}
	for _, k := range order {
		out.ResourceGroups = append(out.ResourceGroups, ResourceGroupCost{ResourceGroup: k, CostUSD: totals[k]})
	}
	return out, nil
}

func (p *ExportProvider) DailyCosts(context.Context) (*DailySeries, error) {
	rows, label, err := p.load()
	if err != nil {
		return nil, err
	}
	dated := make([]exportRow, 0, len(rows))
	for _, r := range rows {
		if r.date != "" {
			dated = append(dated, r)
		}
	}
	order, totals := sum(dated, func(r exportRow) string { return r.date })
	sort.Strings(order)
	out := &DailySeries{Source: SourceExport, Period: label, Points: make([]anomaly.Point, 0, len(order))}
	for _, d := range order {
		out.Points = append(out.Points, anomaly.Point{Date: d, CostUSD: roundUSD(totals[d])})
	}
	return out, nil
}
