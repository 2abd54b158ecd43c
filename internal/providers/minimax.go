package providers

import "context"

const minimaxConsoleURL = "https://platform.minimax.io/"

// MiniMaxAdapter is a stub: MiniMax exposes no public usage or balance
// API, so the record always points at the web console.
type MiniMaxAdapter struct{}

// NewMiniMaxAdapter constructs the adapter.
func NewMiniMaxAdapter() *MiniMaxAdapter {
	return &MiniMaxAdapter{}
}

// Name implements Adapter.
func (m *MiniMaxAdapter) Name() string { return ProviderMiniMax }

// Fetch implements Adapter. No upstream call is made.
func (m *MiniMaxAdapter) Fetch(_ context.Context, _ string, _ Window) (*Record, error) {
	return &Record{
		Provider: ProviderMiniMax,
		Unavailable: &Unavailable{
			Message:    "MiniMax does not provide a usage API; check the console instead",
			ConsoleURL: minimaxConsoleURL,
		},
	}, nil
}
