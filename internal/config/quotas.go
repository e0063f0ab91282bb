package config

import (
	"fmt"
	"os"
	"strings"

	"signal-pipeline/internal/ratelimit"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type quotaFile struct {
	Quotas []quotaEntry `yaml:"quotas" validate:"required,min=1,dive"`
}

type quotaEntry struct {
	Source       string  `yaml:"source" validate:"required"`
	Capacity     float64 `yaml:"capacity" validate:"gt=0"`
	RefillPerSec float64 `yaml:"refill_per_sec" validate:"gt=0"`
}

// LoadQuotas reads a YAML quota override file such as
//
//	quotas:
//	  - source: coingecko
//	    capacity: 25
//	    refill_per_sec: 0.4
//
// and merges it over DefaultQuotas. Sources not in the defaults are added.
func LoadQuotas(path string) ([]ratelimit.Quota, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotas: %w", err)
	}

	var f quotaFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse quotas: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate quotas: %w", err)
	}

	overrides := make([]ratelimit.Quota, 0, len(f.Quotas))
	for _, q := range f.Quotas {
		overrides = append(overrides, ratelimit.Quota{
			Source:       strings.ToLower(strings.TrimSpace(q.Source)),
			Capacity:     q.Capacity,
			RefillPerSec: q.RefillPerSec,
		})
	}
	return mergeQuotas(ratelimit.DefaultQuotas(), overrides), nil
}

func mergeQuotas(base, overrides []ratelimit.Quota) []ratelimit.Quota {
	out := append([]ratelimit.Quota(nil), base...)
	index := make(map[string]int, len(out))
	for i, q := range out {
		index[q.Source] = i
	}
	for _, q := range overrides {
		if i, ok := index[q.Source]; ok {
			out[i] = q
			continue
		}
		index[q.Source] = len(out)
		out = append(out, q)
	}
	return out
}
