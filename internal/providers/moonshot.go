package providers

import (
	"context"
	"net/http"
)

const moonshotDefaultBaseURL = "https://api.moonshot.ai"

// MoonshotAdapter reads the account balance endpoint. Moonshot's
// international platform bills in USD.
type MoonshotAdapter struct {
	client  *http.Client
	baseURL string
}

// NewMoonshotAdapter constructs the adapter. An empty baseURL selects the
// public API endpoint.
func NewMoonshotAdapter(client *http.Client, baseURL string) *MoonshotAdapter {
	if baseURL == "" {
		baseURL = moonshotDefaultBaseURL
	}
	return &MoonshotAdapter{client: client, baseURL: baseURL}
}

// Name implements Adapter.
func (m *MoonshotAdapter) Name() string { return ProviderMoonshot }

type moonshotBalanceResponse struct {
	Data struct {
		AvailableBalance flexString `json:"available_balance"`
		CashBalance      flexString `json:"cash_balance"`
		VoucherBalance   flexString `json:"voucher_balance"`
	} `json:"data"`
}

// Fetch implements Adapter. The window is ignored; balances are a point
// in time.
func (m *MoonshotAdapter) Fetch(ctx context.Context, apiKey string, _ Window) (*Record, error) {
	endpoint := m.baseURL + "/v1/users/me/balance"
	headers := map[string]string{"Authorization": "Bearer " + apiKey}

	var payload moonshotBalanceResponse
	if errGet := getJSON(ctx, m.client, ProviderMoonshot, endpoint, headers, &payload); errGet != nil {
		return nil, errGet
	}

	balance := string(payload.Data.AvailableBalance)
	if balance == "" {
		balance = "0"
	}
	return &Record{
		Provider: ProviderMoonshot,
		Balance: &BalanceInfo{
			Balance:        balance,
			Currency:       "USD",
			CashBalance:    string(payload.Data.CashBalance),
			VoucherBalance: string(payload.Data.VoucherBalance),
		},
	}, nil
}
