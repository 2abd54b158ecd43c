package providers

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const openaiDefaultBaseURL = "https://api.openai.com"

// OpenAIAdapter reads the legacy usage endpoint plus credit grants. The
// usage call is authoritative; credit grants often 403 for project keys
// and are best effort.
type OpenAIAdapter struct {
	client  *http.Client
	baseURL string
}

// NewOpenAIAdapter constructs the adapter. An empty baseURL selects the
// public API endpoint.
func NewOpenAIAdapter(client *http.Client, baseURL string) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &OpenAIAdapter{client: client, baseURL: baseURL}
}

// Name implements Adapter.
func (o *OpenAIAdapter) Name() string { return ProviderOpenAI }

type openaiUsageEntry struct {
	SnapshotID           string  `json:"snapshot_id"`
	Timestamp            string  `json:"timestamp"`
	AggregationTimestamp int64   `json:"aggregation_timestamp"`
	NContextTokensTotal  int64   `json:"n_context_tokens_total"`
	NGeneratedTokens     int64   `json:"n_generated_tokens_total"`
	Usage                float64 `json:"usage"` // cents
}

type openaiUsageResponse struct {
	Data []openaiUsageEntry `json:"data"`
}

type openaiCreditGrantsResponse struct {
	TotalGranted   float64 `json:"total_granted"`
	TotalUsed      float64 `json:"total_used"`
	TotalAvailable float64 `json:"total_available"`
}

// Fetch implements Adapter.
func (o *OpenAIAdapter) Fetch(ctx context.Context, apiKey string, window Window) (*Record, error) {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	query := url.Values{}
	query.Set("start_date", formatDay(window.Start))
	query.Set("end_date", formatDay(window.End))
	endpoint := o.baseURL + "/v1/usage?" + query.Encode()

	var payload openaiUsageResponse
	if errGet := getJSON(ctx, o.client, ProviderOpenAI, endpoint, headers, &payload); errGet != nil {
		return nil, errGet
	}

	byDay := make(map[string]*DailyUsage)
	for _, entry := range payload.Data {
		day := openaiEntryDay(entry)
		if day == "" {
			continue
		}
		bucket := byDay[day]
		if bucket == nil {
			bucket = &DailyUsage{Date: day}
			byDay[day] = bucket
		}
		bucket.Input += entry.NContextTokensTotal
		bucket.Output += entry.NGeneratedTokens
		bucket.Cost += centsToDollars(entry.Usage)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	usage := &TokenUsage{Daily: make([]DailyUsage, 0, len(days)), IsRealData: true}
	for _, day := range days {
		bucket := byDay[day]
		usage.Daily = append(usage.Daily, *bucket)
		usage.TotalInputTokens += bucket.Input
		usage.TotalOutputTokens += bucket.Output
		usage.TotalCost += bucket.Cost
	}

	record := &Record{Provider: ProviderOpenAI, Tokens: usage}

	var grants openaiCreditGrantsResponse
	errGrants := getJSON(ctx, o.client, ProviderOpenAI, o.baseURL+"/dashboard/billing/credit_grants", headers, &grants)
	if errGrants == nil {
		record.Credits = &CreditGrants{
			TotalGranted:   grants.TotalGranted,
			TotalUsed:      grants.TotalUsed,
			TotalAvailable: grants.TotalAvailable,
		}
	}
	return record, nil
}

// openaiEntryDay dates a usage entry: the snapshot_id's "date@model"
// prefix when present, else the string timestamp, else the aggregation
// timestamp. Undateable entries are dropped rather than misfiled.
func openaiEntryDay(entry openaiUsageEntry) string {
	if idx := strings.Index(entry.SnapshotID, "@"); idx > 0 {
		if day := dayFromTimestamp(entry.SnapshotID[:idx]); day != "" {
			return day
		}
	}
	if day := dayFromTimestamp(entry.Timestamp); day != "" {
		return day
	}
	if entry.AggregationTimestamp > 0 {
		return time.Unix(entry.AggregationTimestamp, 0).UTC().Format("2006-01-02")
	}
	return ""
}
