package providers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testWindow() Window {
	end := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	return Window{Start: end.AddDate(0, 0, -7), End: end}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnthropicAdapterAggregatesBuckets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/organizations/usage_report/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant-admin-test-key-0001" {
			t.Fatalf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicAPIVersion {
			t.Fatalf("unexpected version header %q", got)
		}
		if r.URL.Query().Get("bucket_width") != "1d" {
			t.Fatalf("expected bucket_width=1d, got %q", r.URL.Query().Get("bucket_width"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"starting_at":"2025-06-02T00:00:00Z","results":[
				{"uncached_input_tokens":1000,"cache_read_input_tokens":200,
				 "cache_creation":{"ephemeral_1h_input_tokens":50,"ephemeral_5m_input_tokens":30},
				 "output_tokens":400}]},
			{"starting_at":"2025-06-01T00:00:00Z","results":[
				{"uncached_input_tokens":500,"output_tokens":100},
				{"uncached_input_tokens":300,"output_tokens":50}]}
		]}`))
	}))
	defer server.Close()

	adapter := NewAnthropicAdapter(server.Client(), server.URL)
	record, errFetch := adapter.Fetch(context.Background(), "sk-ant-admin-test-key-0001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	usage := record.Tokens
	if usage == nil {
		t.Fatalf("expected token usage record")
	}
	if !usage.IsRealData {
		t.Fatalf("expected is_real_data=true")
	}

	if len(usage.Daily) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(usage.Daily))
	}
	if usage.Daily[0].Date != "2025-06-01" || usage.Daily[1].Date != "2025-06-02" {
		t.Fatalf("daily buckets not sorted ascending: %+v", usage.Daily)
	}
	// 2025-06-02 input counts all cache classes: 1000+200+50+30.
	if usage.Daily[1].Input != 1280 || usage.Daily[1].Output != 400 {
		t.Fatalf("unexpected 06-02 bucket: %+v", usage.Daily[1])
	}
	if usage.TotalInputTokens != 2080 || usage.TotalOutputTokens != 550 {
		t.Fatalf("totals must equal the sum of daily buckets: %+v", usage)
	}

	wantCost := usage.Daily[0].Cost + usage.Daily[1].Cost
	if !almostEqual(usage.TotalCost, wantCost) {
		t.Fatalf("total cost %v != sum of daily costs %v", usage.TotalCost, wantCost)
	}
	if !almostEqual(usage.Daily[1].Cost, 1280.0/1e6*3.0+400.0/1e6*15.0) {
		t.Fatalf("unexpected 06-02 cost %v", usage.Daily[1].Cost)
	}
}

func TestAnthropicMissingCredentialRecord(t *testing.T) {
	record := NewAnthropicAdapter(nil, "").MissingCredentialRecord()
	if record.Tokens == nil {
		t.Fatalf("expected token usage variant")
	}
	if record.Tokens.IsRealData {
		t.Fatalf("placeholder must not claim real data")
	}
	if !record.Tokens.RequiresAdminKey {
		t.Fatalf("expected requires_admin_key flag")
	}
	if record.Tokens.TotalInputTokens != 0 || record.Tokens.TotalCost != 0 {
		t.Fatalf("placeholder must be zeroed: %+v", record.Tokens)
	}
}

func TestMoonshotBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/me/balance" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-moonshot-test-key-0001" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`{"data":{"available_balance":"12.50","cash_balance":10,"voucher_balance":"2.50"}}`))
	}))
	defer server.Close()

	adapter := NewMoonshotAdapter(server.Client(), server.URL)
	record, errFetch := adapter.Fetch(context.Background(), "sk-moonshot-test-key-0001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	balance := record.Balance
	if balance == nil {
		t.Fatalf("expected balance record")
	}
	if balance.Balance != "12.50" {
		t.Fatalf("expected balance 12.50, got %q", balance.Balance)
	}
	if balance.Currency != "USD" {
		t.Fatalf("expected USD, got %q", balance.Currency)
	}
	if balance.CashBalance != "10" || balance.VoucherBalance != "2.50" {
		t.Fatalf("unexpected pass-through fields: %+v", balance)
	}
}

func TestMoonshotBalanceDefaultsToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	record, errFetch := NewMoonshotAdapter(server.Client(), server.URL).
		Fetch(context.Background(), "sk-moonshot-test-key-0001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	if record.Balance.Balance != "0" {
		t.Fatalf("expected default balance 0, got %q", record.Balance.Balance)
	}
}

func TestMoonshotUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	_, errFetch := NewMoonshotAdapter(server.Client(), server.URL).
		Fetch(context.Background(), "sk-bad-key-000000000000", testWindow())
	var upstreamErr *UpstreamError
	if !errors.As(errFetch, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %v", errFetch)
	}
	if upstreamErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", upstreamErr.Status)
	}
	if upstreamErr.Provider != ProviderMoonshot {
		t.Fatalf("expected provider tag, got %q", upstreamErr.Provider)
	}
	if !strings.Contains(upstreamErr.Error(), "401") {
		t.Fatalf("error string should carry the status: %v", upstreamErr)
	}
}

func TestDeepSeekBalanceDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/balance" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"total_balance":"110.00","granted_balance":"10.00","topped_up_balance":"100.00"}`))
	}))
	defer server.Close()

	record, errFetch := NewDeepSeekAdapter(server.Client(), server.URL).
		Fetch(context.Background(), "sk-deepseek-test-key-0001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	balance := record.Balance
	if balance.Balance != "0" {
		t.Fatalf("missing balance should default to 0, got %q", balance.Balance)
	}
	if balance.Currency != "USD" {
		t.Fatalf("missing currency should default to USD, got %q", balance.Currency)
	}
	if balance.TotalBalance != "110.00" || balance.GrantedBalance != "10.00" || balance.ToppedUpBalance != "100.00" {
		t.Fatalf("unexpected pass-through fields: %+v", balance)
	}
}

func TestOpenAIUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/usage":
			if r.URL.Query().Get("start_date") == "" || r.URL.Query().Get("end_date") == "" {
				t.Fatalf("expected start_date and end_date query params")
			}
			_, _ = w.Write([]byte(`{"data":[
				{"snapshot_id":"2025-06-01@gpt-4o","n_context_tokens_total":100,"n_generated_tokens_total":20,"usage":150},
				{"snapshot_id":"gpt-4o","aggregation_timestamp":1748822400,"n_context_tokens_total":50,"n_generated_tokens_total":10,"usage":75},
				{"snapshot_id":"gpt-4o","timestamp":"2025-06-03T08:00:00Z","n_context_tokens_total":25,"n_generated_tokens_total":5,"usage":50},
				{"snapshot_id":"gpt-4o","n_context_tokens_total":999,"n_generated_tokens_total":999,"usage":999}
			]}`))
		case "/dashboard/billing/credit_grants":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"project keys cannot read grants"}`))
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	record, errFetch := NewOpenAIAdapter(server.Client(), server.URL).
		Fetch(context.Background(), "sk-openai-test-key-00001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	usage := record.Tokens
	if usage == nil {
		t.Fatalf("expected token usage record")
	}

	// The undateable last entry is dropped; the aggregation timestamp lands
	// on 2025-06-02 (1748822400 = 2025-06-02T00:00:00Z) and the string
	// timestamp entry on 2025-06-03.
	if len(usage.Daily) != 3 {
		t.Fatalf("expected 3 daily buckets, got %d: %+v", len(usage.Daily), usage.Daily)
	}
	if usage.Daily[0].Date != "2025-06-01" || usage.Daily[1].Date != "2025-06-02" || usage.Daily[2].Date != "2025-06-03" {
		t.Fatalf("unexpected dates: %+v", usage.Daily)
	}
	if usage.Daily[2].Input != 25 || usage.Daily[2].Output != 5 {
		t.Fatalf("unexpected string-timestamp bucket: %+v", usage.Daily[2])
	}
	if usage.TotalInputTokens != 175 || usage.TotalOutputTokens != 35 {
		t.Fatalf("unexpected totals: %+v", usage)
	}
	// usage values are cents.
	if !almostEqual(usage.Daily[0].Cost, 1.50) || !almostEqual(usage.TotalCost, 2.75) {
		t.Fatalf("unexpected costs: daily=%v total=%v", usage.Daily[0].Cost, usage.TotalCost)
	}

	// Credit grants 403 is tolerated: record succeeds without credits.
	if record.Credits != nil {
		t.Fatalf("expected nil credits after grants failure, got %+v", record.Credits)
	}
}

func TestOpenAICreditGrants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/usage":
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/dashboard/billing/credit_grants":
			_, _ = w.Write([]byte(`{"total_granted":120,"total_used":45.5,"total_available":74.5}`))
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	record, errFetch := NewOpenAIAdapter(server.Client(), server.URL).
		Fetch(context.Background(), "sk-openai-test-key-00001", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	if record.Credits == nil {
		t.Fatalf("expected credits")
	}
	if !almostEqual(record.Credits.TotalAvailable, 74.5) {
		t.Fatalf("unexpected credits: %+v", record.Credits)
	}
	if len(record.Tokens.Daily) != 0 {
		t.Fatalf("expected empty daily list, got %+v", record.Tokens.Daily)
	}
}

func TestMiniMaxUnavailable(t *testing.T) {
	record, errFetch := NewMiniMaxAdapter().Fetch(context.Background(), "any-minimax-key-000000000", testWindow())
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	if record.Unavailable == nil {
		t.Fatalf("expected unavailable record")
	}
	if record.Unavailable.ConsoleURL != minimaxConsoleURL {
		t.Fatalf("unexpected console url %q", record.Unavailable.ConsoleURL)
	}
}

func TestValidateKeyFormat(t *testing.T) {
	long := strings.Repeat("x", 201)
	cases := []struct {
		provider string
		key      string
		ok       bool
	}{
		{ProviderAnthropicAdmin, "sk-ant-admin01-abcdefghij", true},
		{ProviderAnthropicAdmin, "sk-abcdefghijklmnopqrst", true},
		{ProviderAnthropicAdmin, "ak-abcdefghijklmnopqrst", false},
		{ProviderMoonshot, "sk-moonshotmoonshotmoon", true},
		{ProviderMoonshot, "moonshot-no-prefix-0001", false},
		{ProviderOpenAI, "sk-openaiopenaiopenai01", true},
		{ProviderDeepSeek, "sk-deepseekdeepseek0001", true},
		{ProviderMiniMax, "anything-goes-here-0001", true},
		{ProviderMiniMax, "too-short", false},
		{ProviderOpenAI, "sk-" + long, false},
		{"unknown", "sk-abcdefghijklmnopqrst", false},
	}
	for _, tc := range cases {
		errValidate := ValidateKeyFormat(tc.provider, tc.key)
		if tc.ok && errValidate != nil {
			t.Errorf("%s/%q: unexpected error %v", tc.provider, tc.key, errValidate)
		}
		if !tc.ok && errValidate == nil {
			t.Errorf("%s/%q: expected validation error", tc.provider, tc.key)
		}
	}

	var unknownErr *ErrUnknownProvider
	if errValidate := ValidateKeyFormat("nope", "sk-abcdefghijklmnopqrst"); !errors.As(errValidate, &unknownErr) {
		t.Fatalf("expected *ErrUnknownProvider, got %v", errValidate)
	}
}

func TestRegistryCoversBuiltins(t *testing.T) {
	registry := NewRegistry(nil)
	want := []string{
		ProviderAnthropicAdmin,
		ProviderDeepSeek,
		ProviderMiniMax,
		ProviderMoonshot,
		ProviderOpenAI,
	}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %v", len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("expected %q at %d, got %v", name, i, got)
		}
	}
	if _, ok := registry.Get("minimax"); !ok {
		t.Fatalf("minimax adapter missing")
	}
	if _, ok := registry.Get("nope"); ok {
		t.Fatalf("unexpected adapter for unknown name")
	}
}
