package restprovider

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
)

// loadFallbackFile reads a YAML document keyed by capability. Each value uses the
// same field names as the live JSON payload.
func loadFallbackFile(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fallback file: %w", err)
	}

	out := make(map[string]json.RawMessage, len(doc))
	for capability, value := range doc {
		if !isSingleCapability(capability) {
			return nil, fmt.Errorf("fallback file: %q has no static form", capability)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("fallback file: %s: %w", capability, err)
		}
		out[capability] = raw
	}
	return out, nil
}

// staticEstimate decodes a fresh copy of raw on every call so callers may
// mutate the result.
func staticEstimate[T any](c *Client, raw json.RawMessage) func(q provider.Query) (*T, models.Source) {
	return func(q provider.Query) (*T, models.Source) {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, models.Source{}
		}
		return &out, models.Source{
			Name:        c.name,
			URL:         c.fallbackSrc,
			RetrievedAt: c.now().UTC(),
			Notes:       "static fallback: live registry unavailable",
		}
	}
}
