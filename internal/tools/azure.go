package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"finops-agent/internal/anomaly"
	"finops-agent/internal/config"
)

const (
	costAPIVersion  = "2023-03-01"
	managementScope = "https://management.azure.com/.default"
	tokenTimeout    = 15 * time.Second
	queryTimeout    = 20 * time.Second
	// refresh tokens this long before they expire
	tokenSkew = time.Minute
)

var ErrMissingCredentials = errors.New("azure credentials are incomplete")

// AzureProvider queries the Cost Management API with a client-credentials token
type AzureProvider struct {
	client *resty.Client
	cfg    config.AzureConfig
	Now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type costQuery struct {
	Type       string         `json:"type"`
	Timeframe  string         `json:"timeframe"`
	TimePeriod timePeriod     `json:"timePeriod"`
	Dataset    costQueryInner `json:"dataset"`
}

type timePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type costQueryInner struct {
	Granularity string                 `json:"granularity"`
	Aggregation map[string]aggregation `json:"aggregation"`
	Grouping    []grouping             `json:"grouping,omitempty"`
}

type aggregation struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type grouping struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type queryResult struct {
	Properties struct {
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		Rows [][]any `json:"rows"`
	} `json:"properties"`
}

// records zips every row with the column names
func (q *queryResult) records() []map[string]any {
	out := make([]map[string]any, 0, len(q.Properties.Rows))
	for _, row := range q.Properties.Rows {
		rec := make(map[string]any, len(row))
		for i, v := range row {
			if i < len(q.Properties.Columns) {
				rec[q.Properties.Columns[i].Name] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

func NewAzureProvider(cfg config.AzureConfig) (*AzureProvider, error) {
	if !cfg.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r != nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
	})
	return &AzureProvider{client: client, cfg: cfg, Now: time.Now}, nil
}

func (p *AzureProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.Now().Before(p.expiry) {
		return p.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()
	var tok tokenResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     p.cfg.ClientID,
			"client_secret": p.cfg.ClientSecret,
			"scope":         managementScope,
		}).
		SetResult(&tok).
		Post(fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(p.cfg.LoginURL, "/"), p.cfg.TenantID))
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token request failed: %s", resp.Status())
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response carried no access token")
	}
	p.token = tok.AccessToken
	p.expiry = p.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return p.token, nil
}

func (p *AzureProvider) window() (string, time.Time, time.Time) {
	to := p.Now().UTC()
	from := to.AddDate(0, 0, -p.cfg.LookbackDays)
	return period(from, to), from, to
}

func (p *AzureProvider) query(ctx context.Context, granularity string, groupBy string) (*queryResult, string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, "", err
	}
	label, from, to := p.window()
	body := costQuery{
		Type:       "ActualCost",
		Timeframe:  "Custom",
		TimePeriod: timePeriod{From: from.Format(dateLayout), To: to.Format(dateLayout)},
		Dataset: costQueryInner{
			Granularity: granularity,
			Aggregation: map[string]aggregation{"totalCost": {Name: "Cost", Function: "Sum"}},
		},
	}
	if groupBy != "" {
		body.Dataset.Grouping = []grouping{{Type: "Dimension", Name: groupBy}}
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var result queryResult
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("api-version", costAPIVersion).
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.CostManagement/query",
			strings.TrimRight(p.cfg.ManagementURL, "/"), p.cfg.SubscriptionID))
	if err != nil {
		return nil, "", fmt.Errorf("failed to query cost management: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("cost query failed: %s", resp.Status())
	}
	log.Debug().Str("granularity", granularity).Str("group_by", groupBy).Int("rows", len(result.Properties.Rows)).Msg("Cost query done")
	return &result, label, nil
}

func (p *AzureProvider) CostByService(ctx context.Context) (*ServiceBreakdown, error) {
	result, label, err := p.query(ctx, "None", "ServiceName")
	if err != nil {
		return nil, err
	}
	out := &ServiceBreakdown{Source: SourceAzure, Period: label, Services: []ServiceCost{}}
	for _, rec := range result.records() {
		out.Services = append(out.Services, ServiceCost{Service: stringField(rec, "ServiceName"), CostUSD: floatField(rec, "Cost")})
	}
	return out, nil
}

func (p *AzureProvider) CostByResourceGroup(ctx context.Context) (*ResourceGroupBreakdown, error) {
	result, label, err := p.query(ctx, "None", "ResourceGroupName")
	if err != nil {
		return nil, err
	}
	out := &ResourceGroupBreakdown{Source: SourceAzure, Period: label, ResourceGroups: []ResourceGroupCost{}}
	for _, rec := range result.records() {
		out.ResourceGroups = append(out.ResourceGroups, ResourceGroupCost{
			ResourceGroup: stringField(rec, "ResourceGroupName"),
			CostUSD:       floatField(rec, "Cost"),
		})
	}
	return out, nil
}

func (p *AzureProvider) DailyCosts(ctx context.Context) (*DailySeries, error) {
	result, label, err := p.query(ctx, "Daily", "")
	if err != nil {
		return nil, err
	}
	out := &DailySeries{Source: SourceAzure, Period: label, Points: []anomaly.Point{}}
	for _, rec := range result.records() {
		out.Points = append(out.Points, anomaly.Point{Date: usageDate(rec["UsageDate"]), CostUSD: roundUSD(floatField(rec, "Cost"))})
	}
	return out, nil
}

func stringField(rec map[string]any, key string) string {
	if s, ok := rec[key].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

func floatField(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// usageDate accepts 20260917 as a number or an ISO timestamp string
func usageDate(v any) string {
	var s string
	switch t := v.(type) {
	case float64:
		s = strconv.FormatFloat(t, 'f', 0, 64)
	case string:
		s = t
	default:
		return ""
	}
	if len(s) == 8 && !strings.Contains(s, "-") {
		return s[:4] + "-" + s[4:6] + "-" + s[6:]
	}
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
