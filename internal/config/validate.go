package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// normalize canonicalises case-insensitive values before validation.
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Detector.RunningMode = strings.ToUpper(c.Detector.RunningMode)
	for i, d := range c.Detector.Delegates {
		c.Detector.Delegates[i] = strings.ToUpper(d)
	}
	c.Playback.Storefront = strings.ToLower(c.Playback.Storefront)
	c.Store.Kind = strings.ToLower(c.Store.Kind)
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if c.Store.Kind == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required when STATE_STORE=postgres", ErrInvalid)
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return fmt.Errorf("%w: SPOTIFY_ID and SPOTIFY_SECRET must be set together", ErrInvalid)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// HasSpotify reports whether streaming credentials are configured.
func (c *Config) HasSpotify() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
