package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "timecheck"

// accountKey stores which account is currently signed in.
const accountKey = "account"

// ErrNoCredential is returned when no bearer token is stored. Sync
// attempts that hit it must fail before contacting the authority.
var ErrNoCredential = errors.New("no stored credential")

// Provider is the capability the sync engine needs: the current bearer
// token, or ErrNoCredential.
type Provider interface {
	Token() (string, error)
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/timecheck/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("timecheck-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Keyring stores the bearer token and the signed-in account in the
// system keyring.
type Keyring struct{}

// Token returns the stored bearer token for the signed-in account.
func (Keyring) Token() (string, error) {
	account, err := Account()
	if err != nil {
		return "", err
	}
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}

	return string(item.Data), nil
}

// Account returns the signed-in account, or ErrNoCredential when nobody
// is signed in.
func Account() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(accountKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("getting account: %w", err)
	}

	return string(item.Data), nil
}

// Store saves the account and its bearer token.
func Store(account, token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Set(keyring.Item{Key: accountKey, Data: []byte(account)}); err != nil {
		return fmt.Errorf("setting account: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: tokenKey(account), Data: []byte(token)}); err != nil {
		return fmt.Errorf("setting token: %w", err)
	}

	return nil
}

// Clear removes the stored account and its token.
func Clear() error {
	account, err := Account()
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		return err
	}

	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(tokenKey(account)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing token: %w", err)
	}
	if err := ring.Remove(accountKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing account: %w", err)
	}

	return nil
}

func tokenKey(account string) string {
	return "token:" + account
}

// Static is a fixed-token Provider for tests and scripted use.
type Static string

// Token returns the fixed token, or ErrNoCredential when empty.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}
