package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Built-in provider names. The set is configuration, not a contract:
// registering a new adapter is the only step to add a provider.
const (
	ProviderAnthropicAdmin = "anthropic-admin"
	ProviderMoonshot       = "moonshot"
	ProviderOpenAI         = "openai"
	ProviderDeepSeek       = "deepseek"
	ProviderMiniMax        = "minimax"
)

// Window is the query time range for usage reports. Balance providers
// ignore it.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingDays returns a window covering the trailing n days ending now.
func TrailingDays(n int) Window {
	end := time.Now().UTC()
	return Window{Start: end.AddDate(0, 0, -n), End: end}
}

// DailyUsage is one calendar-day bucket of normalized token usage.
type DailyUsage struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Input  int64   `json:"input"`
	Output int64   `json:"output"`
	Cost   float64 `json:"cost"`
}

// TokenUsage is the normalized record variant for token-metered providers.
// Totals are always the exact sum of the daily buckets, which are sorted
// ascending by date with no duplicate days.
type TokenUsage struct {
	TotalInputTokens  int64        `json:"total_input_tokens"`
	TotalOutputTokens int64        `json:"total_output_tokens"`
	TotalCost         float64      `json:"total_cost"`
	Daily             []DailyUsage `json:"daily"`

	// IsRealData distinguishes figures computed from real token counts
	// from placeholder zeros returned when no admin key is stored.
	IsRealData       bool   `json:"is_real_data"`
	RequiresAdminKey bool   `json:"requires_admin_key,omitempty"`
	Message          string `json:"message,omitempty"`
}

// BalanceInfo is the normalized record variant for balance providers.
type BalanceInfo struct {
	Balance         string `json:"balance"`
	Currency        string `json:"currency"`
	CashBalance     string `json:"cash_balance,omitempty"`
	VoucherBalance  string `json:"voucher_balance,omitempty"`
	TotalBalance    string `json:"total_balance,omitempty"`
	GrantedBalance  string `json:"granted_balance,omitempty"`
	ToppedUpBalance string `json:"topped_up_balance,omitempty"`
}

// CreditGrants carries OpenAI credit grant totals.
type CreditGrants struct {
	TotalGranted   float64 `json:"total_granted"`
	TotalUsed      float64 `json:"total_used"`
	TotalAvailable float64 `json:"total_available"`
}

// Unavailable is the record variant for providers without a usage API.
type Unavailable struct {
	Message    string `json:"message"`
	ConsoleURL string `json:"console_url"`
}

// Record is the normalized adapter output: exactly one variant is set.
// FetchedAt and Stale are filled by the caller when a record is served
// from the snapshot cache instead of a live upstream response.
type Record struct {
	Provider    string        `json:"provider"`
	Tokens      *TokenUsage   `json:"tokens,omitempty"`
	Balance     *BalanceInfo  `json:"balance,omitempty"`
	Credits     *CreditGrants `json:"credits,omitempty"`
	Unavailable *Unavailable  `json:"unavailable,omitempty"`
	FetchedAt   *time.Time    `json:"fetched_at,omitempty"`
	Stale       bool          `json:"stale,omitempty"`
}

// Adapter translates one provider's usage/balance API into a Record.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, apiKey string, window Window) (*Record, error)
}

// MissingCredentialReporter is implemented by adapters that return a
// placeholder record instead of an error when no credential is stored.
type MissingCredentialReporter interface {
	MissingCredentialRecord() *Record
}

// UpstreamError reports a non-success upstream response or a transport
// failure. Adapters never retry; the caller may re-trigger manually.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s upstream: status %d: %s", e.Provider, e.Status, truncateBody(e.Body))
}

// Unwrap returns the transport cause, if any.
func (e *UpstreamError) Unwrap() error { return e.Err }

func truncateBody(body string) string {
	const max = 256
	body = strings.TrimSpace(body)
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}

// flexString decodes JSON values that upstreams serve inconsistently as
// either strings or numbers.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if errString := json.Unmarshal(data, &s); errString == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if errNumber := json.Unmarshal(data, &n); errNumber == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("cannot decode %q as string or number", string(data))
}

// getJSON performs a GET against an upstream and decodes a 2xx JSON body
// into out. Non-2xx statuses and transport failures become *UpstreamError.
func getJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, out any) error {
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return &UpstreamError{Provider: provider, Err: errReq}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, errDo := client.Do(req)
	if errDo != nil {
		return &UpstreamError{Provider: provider, Err: errDo}
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return &UpstreamError{Provider: provider, Status: resp.StatusCode, Err: errRead}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Provider: provider, Status: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if errDecode := json.Unmarshal(body, out); errDecode != nil {
		return &UpstreamError{Provider: provider, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", errDecode)}
	}
	return nil
}

// dayFromTimestamp extracts the YYYY-MM-DD prefix of an RFC3339 timestamp.
func dayFromTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.Index(value, "T"); idx > 0 {
		value = value[:idx]
	}
	if _, errParse := time.Parse("2006-01-02", value); errParse != nil {
		return ""
	}
	return value
}

// formatDay renders a time as an upstream YYYY-MM-DD query value.
func formatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// centsToDollars converts an upstream cent amount to dollars.
func centsToDollars(cents float64) float64 {
	return cents / 100
}
