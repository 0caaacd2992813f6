package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeExport(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExportProvider(t *testing.T) {
	ctx := context.Background()
	path := writeExport(t, [][]any{
		{"Date", "Service Name", "ResourceGroupName", "Cost"},
		{"2026-09-02", "Virtual Machines", "rg-prod", "100.5"},
		{"2026-09-01", "Virtual Machines", "rg-prod", "50.25"},
		{"2026-09-01", "Azure Monitor", "rg-ops", "20"},
		{"2026-09-02", "Azure Monitor", "", "not a number"},
	})
	r := NewRegistry(NewExportProvider(path))

	t.Run("Should aggregate per service", func(t *testing.T) {
		out, err := r.Breakdown().Invoke(ctx)
		require.NoError(t, err)
		b := out.(*ServiceBreakdown)
		assert.Equal(t, SourceExport, b.Source)
		assert.Equal(t, "2026-09-01 to 2026-09-02", b.Period)
		assert.Equal(t, []ServiceCost{{"Virtual Machines", 150.75}, {"Azure Monitor", 20}}, b.Services)
		assert.Equal(t, 170.75, b.TotalUSD)
	})

	t.Run("Should aggregate per resource group", func(t *testing.T) {
		tool, _ := r.Tool(CostByResourceGroup)
		out, err := tool.Invoke(ctx)
		require.NoError(t, err)
		g := out.(*ResourceGroupBreakdown)
		assert.Equal(t, []ResourceGroupCost{{"rg-prod", 150.75}, {"rg-ops", 20}}, g.ResourceGroups)
	})

	t.Run("Should order days chronologically", func(t *testing.T) {
		tool, _ := r.Tool(DailyCostTrend)
		out, err := tool.Invoke(ctx)
		require.NoError(t, err)
		d := out.(*DailyTrend)
		require.Len(t, d.Daily, 2)
		assert.Equal(t, "2026-09-01", d.Daily[0].Date)
		assert.Equal(t, 70.25, d.Daily[0].CostUSD)
		assert.Equal(t, 100.5, d.Daily[1].CostUSD)
	})

	t.Run("Should leave undated rows out of the daily series only", func(t *testing.T) {
		path := writeExport(t, [][]any{
			{"UsageDate", "ServiceName", "Cost"},
			{"20260901", "Storage", "10"},
			{"09/02/2026", "Storage", "12"},
			{"", "Storage", "500"},
			{"n/a", "Storage", "700"},
		})
		r := NewRegistry(NewExportProvider(path))

		tool, _ := r.Tool(DailyCostTrend)
		out, err := tool.Invoke(ctx)
		require.NoError(t, err)
		d := out.(*DailyTrend)
		require.Len(t, d.Daily, 2)
		assert.Equal(t, "2026-09-01", d.Daily[0].Date)
		assert.Equal(t, "2026-09-02", d.Daily[1].Date)
		assert.Equal(t, 11.0, d.MeanDailyUSD)

		out, err = r.Breakdown().Invoke(ctx)
		require.NoError(t, err)
		b := out.(*ServiceBreakdown)
		assert.Equal(t, 1222.0, b.TotalUSD)
		assert.Equal(t, "2026-09-01 to 2026-09-02", b.Period)
	})
}

func TestExportProviderErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewExportProvider(filepath.Join(t.TempDir(), "missing.xlsx")).CostByService(ctx)
	require.Error(t, err)

	_, err = NewExportProvider(writeExport(t, [][]any{{"Date", "Cost"}})).CostByService(ctx)
	assert.ErrorIs(t, err, ErrEmptyExport)

	_, err = NewExportProvider(writeExport(t, [][]any{{"Date", "Amount"}, {"2026-09-01", "1"}})).CostByService(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cost column")
}
