package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeySize is the length in bytes of the generated RPC secret.
const KeySize = 32

// Provider stores the daemon's RPC secret.
type Provider interface {
	SetKey() ([]byte, error)
	GetKey() ([]byte, error)
	DeleteKey() error
}

// Keyring keeps the secret in the operating system keyring.
type Keyring struct {
	AppName  string
	KeyField string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
	randRead      = rand.Read
)

var _ Provider = (*Keyring)(nil)

func NewKeyring() *Keyring {
	return &Keyring{
		AppName:  "warpq",
		KeyField: "rpc-secret",
	}
}

// SetKey generates a new secret and stores it hex-encoded.
func (k *Keyring) SetKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := randRead(key); err != nil {
		return nil, err
	}
	if err := keyringSet(k.AppName, k.KeyField, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *Keyring) GetKey() ([]byte, error) {
	value, err := keyringGet(k.AppName, k.KeyField)
	if err != nil {
		return nil, err
	}
	return decodeKey(value)
}

func (k *Keyring) DeleteKey() error {
	return keyringDelete(k.AppName, k.KeyField)
}

func decodeKey(value string) ([]byte, error) {
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d, got %d", KeySize, len(key))
	}
	return key, nil
}

// Secret returns the stored secret as a bearer token, generating and
// storing one on first use.
func Secret(p Provider) (string, error) {
	key, err := p.GetKey()
	if err == nil {
		return hex.EncodeToString(key), nil
	}
	key, err = p.SetKey()
	if err != nil {
		return "", fmt.Errorf("store rpc secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}
