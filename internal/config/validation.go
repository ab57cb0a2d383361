package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	verr := &ValidationError{}

	if err := validate.Struct(c); err != nil {
		if !errors.As(err, &verr.Fields) {
			return err
		}
		for _, fe := range verr.Fields {
			verr.Problems = append(verr.Problems, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if sum := c.Ranking.FreshnessWeight + c.Ranking.PersonalizationWeight; sum > 1+1e-9 {
		verr.Problems = append(verr.Problems, fmt.Sprintf("ranking: freshness_weight + personalization_weight = %.2f, must not exceed 1", sum))
	}
	if c.Search.Google.Enabled && (c.Search.Google.APIKey == "" || c.Search.Google.EngineID == "") {
		verr.Problems = append(verr.Problems, "search.google: enabled without api_key and engine_id")
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}
