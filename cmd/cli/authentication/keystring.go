package authentication

// keystring.go keeps the session token in the OS keyring on the client side.
import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/zalando/go-keyring"
)

const (
	serviceName = "cinehub-cli"
	tokenKey    = "session"
)

var ErrNotLoggedIn = errors.New("not logged in: run `cinehub auth login --token <jwt>`")

type StoredCredentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Expired reports whether the token is past its exp claim. Tokens without
// one never expire locally; the server still decides.
func (c *StoredCredentials) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && now.Unix() >= c.ExpiresAt
}

func StoreTokens(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, tokenKey, string(data))
}

func GetTokens() (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func DeleteTokens() error {
	err := keyring.Delete(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
