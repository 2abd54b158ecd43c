package providers

import (
	"context"
	"net/http"
	"net/url"
	"sort"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"

	// Flat per-million-token prices used to estimate spend from token
	// counts. The usage report carries no cost figures of its own.
	anthropicInputPricePerMTok  = 3.0
	anthropicOutputPricePerMTok = 15.0
)

// AnthropicAdapter reads the organization usage report. It needs an admin
// key; regular workspace keys are rejected upstream with 401.
type AnthropicAdapter struct {
	client  *http.Client
	baseURL string
}

// NewAnthropicAdapter constructs the adapter. An empty baseURL selects
// the public API endpoint.
func NewAnthropicAdapter(client *http.Client, baseURL string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicAdapter{client: client, baseURL: baseURL}
}

// Name implements Adapter.
func (a *AnthropicAdapter) Name() string { return ProviderAnthropicAdmin }

// MissingCredentialRecord returns the placeholder shown when no admin key
// is stored: zeroed totals flagged as estimated, never an error.
func (a *AnthropicAdapter) MissingCredentialRecord() *Record {
	return &Record{
		Provider: ProviderAnthropicAdmin,
		Tokens: &TokenUsage{
			Daily:            []DailyUsage{},
			IsRealData:       false,
			RequiresAdminKey: true,
			Message:          "Add an Anthropic admin key to see real usage data",
		},
	}
}

type anthropicCacheCreation struct {
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
}

type anthropicUsageResult struct {
	UncachedInputTokens  int64                  `json:"uncached_input_tokens"`
	CacheReadInputTokens int64                  `json:"cache_read_input_tokens"`
	CacheCreation        anthropicCacheCreation `json:"cache_creation"`
	OutputTokens         int64                  `json:"output_tokens"`
}

type anthropicUsageBucket struct {
	StartingAt string                 `json:"starting_at"`
	EndingAt   string                 `json:"ending_at"`
	Results    []anthropicUsageResult `json:"results"`
}

type anthropicUsageResponse struct {
	Data []anthropicUsageBucket `json:"data"`
}

// Fetch implements Adapter. All input token classes count as input:
// uncached, cache reads, and both ephemeral cache creation tiers.
func (a *AnthropicAdapter) Fetch(ctx context.Context, apiKey string, window Window) (*Record, error) {
	query := url.Values{}
	query.Set("starting_at", window.Start.UTC().Format("2006-01-02T15:04:05Z"))
	query.Set("ending_at", window.End.UTC().Format("2006-01-02T15:04:05Z"))
	query.Set("bucket_width", "1d")
	endpoint := a.baseURL + "/v1/organizations/usage_report/messages?" + query.Encode()

	headers := map[string]string{
		"X-Api-Key":         apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var payload anthropicUsageResponse
	if errGet := getJSON(ctx, a.client, ProviderAnthropicAdmin, endpoint, headers, &payload); errGet != nil {
		return nil, errGet
	}

	byDay := make(map[string]*DailyUsage)
	for _, bucket := range payload.Data {
		day := dayFromTimestamp(bucket.StartingAt)
		if day == "" {
			continue
		}
		entry := byDay[day]
		if entry == nil {
			entry = &DailyUsage{Date: day}
			byDay[day] = entry
		}
		for _, result := range bucket.Results {
			entry.Input += result.UncachedInputTokens +
				result.CacheReadInputTokens +
				result.CacheCreation.Ephemeral1hInputTokens +
				result.CacheCreation.Ephemeral5mInputTokens
			entry.Output += result.OutputTokens
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	usage := &TokenUsage{Daily: make([]DailyUsage, 0, len(days)), IsRealData: true}
	for _, day := range days {
		entry := byDay[day]
		entry.Cost = anthropicCost(entry.Input, entry.Output)
		usage.Daily = append(usage.Daily, *entry)
		usage.TotalInputTokens += entry.Input
		usage.TotalOutputTokens += entry.Output
		usage.TotalCost += entry.Cost
	}

	return &Record{Provider: ProviderAnthropicAdmin, Tokens: usage}, nil
}

func anthropicCost(input, output int64) float64 {
	return float64(input)/1e6*anthropicInputPricePerMTok +
		float64(output)/1e6*anthropicOutputPricePerMTok
}
