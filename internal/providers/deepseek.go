package providers

import (
	"context"
	"net/http"
)

const deepseekDefaultBaseURL = "https://api.deepseek.com"

// DeepSeekAdapter reads the account balance endpoint.
type DeepSeekAdapter struct {
	client  *http.Client
	baseURL string
}

// NewDeepSeekAdapter constructs the adapter. An empty baseURL selects the
// public API endpoint.
func NewDeepSeekAdapter(client *http.Client, baseURL string) *DeepSeekAdapter {
	if baseURL == "" {
		baseURL = deepseekDefaultBaseURL
	}
	return &DeepSeekAdapter{client: client, baseURL: baseURL}
}

// Name implements Adapter.
func (d *DeepSeekAdapter) Name() string { return ProviderDeepSeek }

type deepseekBalanceResponse struct {
	Balance         flexString `json:"balance"`
	Currency        flexString `json:"currency"`
	TotalBalance    flexString `json:"total_balance"`
	GrantedBalance  flexString `json:"granted_balance"`
	ToppedUpBalance flexString `json:"topped_up_balance"`
}

// Fetch implements Adapter. The window is ignored; balances are a point
// in time.
func (d *DeepSeekAdapter) Fetch(ctx context.Context, apiKey string, _ Window) (*Record, error) {
	endpoint := d.baseURL + "/user/balance"
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var payload deepseekBalanceResponse
	if errGet := getJSON(ctx, d.client, ProviderDeepSeek, endpoint, headers, &payload); errGet != nil {
		return nil, errGet
	}

	balance := string(payload.Balance)
	if balance == "" {
		balance = "0"
	}
	currency := string(payload.Currency)
	if currency == "" {
		currency = "USD"
	}
	return &Record{
		Provider: ProviderDeepSeek,
		Balance: &BalanceInfo{
			Balance:         balance,
			Currency:        currency,
			TotalBalance:    string(payload.TotalBalance),
			GrantedBalance:  string(payload.GrantedBalance),
			ToppedUpBalance: string(payload.ToppedUpBalance),
		},
	}, nil
}
