package providers

import (
	"fmt"
	"strings"
)

// Key format bounds shared by all providers. The bounds are a sanity
// check against pasted garbage, not an authenticity proof; only the
// upstream call proves a key works.
const (
	minKeyLength = 20
	maxKeyLength = 200
)

// keyPrefixes lists the accepted key prefixes per provider. An empty
// list means length-only validation.
var keyPrefixes = map[string][]string{
	ProviderAnthropicAdmin: {"sk-ant-", "sk-"},
	ProviderMoonshot:       {"sk-"},
	ProviderOpenAI:         {"sk-"},
	ProviderDeepSeek:       {"sk-"},
	ProviderMiniMax:        nil,
}

// ValidateKeyFormat checks a raw API key against the provider's expected
// shape before it is ever encrypted or sent upstream.
func ValidateKeyFormat(provider, key string) error {
	prefixes, known := keyPrefixes[provider]
	if !known {
		return &ErrUnknownProvider{Name: provider}
	}

	key = strings.TrimSpace(key)
	if len(key) < minKeyLength || len(key) > maxKeyLength {
		return fmt.Errorf("api key must be between %d and %d characters", minKeyLength, maxKeyLength)
	}
	if len(prefixes) == 0 {
		return nil
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("api key for %s must start with %s", provider, strings.Join(prefixes, " or "))
}
