// Package twitter implements the upstream API transport: authenticated
// keyword search over HTTP and keyword streams over websockets.
package twitter

import (
	"errors"
	"fmt"
)

// Credentials carries the four API secrets. Values must never be logged;
// only presence is ever reported.
type Credentials struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
}

// Validate reports which credential fields are missing.
func (c Credentials) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.APIKeySecret == "" {
		missing = append(missing, "api key secret")
	}
	if c.AccessToken == "" {
		missing = append(missing, "access token")
	}
	if c.AccessTokenSecret == "" {
		missing = append(missing, "access token secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %v: %w", missing, ErrMissingCredentials)
	}
	return nil
}

// ErrMissingCredentials indicates incomplete API credentials.
var ErrMissingCredentials = errors.New("incomplete twitter credentials")
