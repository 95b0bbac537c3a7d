// Package keyring stores the warpq RPC secret in the operating system's
// keyring, falling back to a private file when no keyring is available.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyFileName = "rpc.key"
	keyFileMode = 0600
)

// FileKeyStore keeps the key hex-encoded in a 0600 file.
type FileKeyStore struct {
	configDir string
}

var (
	fileRandRead    = rand.Read
	fileReadFile    = os.ReadFile
	fileRemove      = os.Remove
	fileRename      = os.Rename
	fileMkdirAll    = os.MkdirAll
	fileTempFile    = os.CreateTemp
	fileTempFileDir = ""
)

// NewFileKeyStore creates a store keeping the key in configDir.
func NewFileKeyStore(configDir string) *FileKeyStore {
	return &FileKeyStore{
		configDir: configDir,
	}
}

func (f *FileKeyStore) keyPath() string {
	return filepath.Join(f.configDir, keyFileName)
}

// SetKey generates a new key and writes it hex-encoded with 0600
// permissions through a temp file and rename.
func (f *FileKeyStore) SetKey() ([]byte, error) {
	if err := fileMkdirAll(f.configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := fileRandRead(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	keyHex := hex.EncodeToString(key)

	dir := f.configDir
	if fileTempFileDir != "" {
		dir = fileTempFileDir
	}
	tmpFile, err := fileTempFile(dir, ".rpc.key.tmp.*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(keyHex); err != nil {
		tmpFile.Close()
		fileRemove(tmpPath)
		return nil, fmt.Errorf("write key: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		fileRemove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, keyFileMode); err != nil {
		fileRemove(tmpPath)
		return nil, fmt.Errorf("set permissions: %w", err)
	}

	if err := fileRename(tmpPath, f.keyPath()); err != nil {
		fileRemove(tmpPath)
		return nil, fmt.Errorf("rename key file: %w", err)
	}

	return key, nil
}

// GetKey reads the stored key.
func (f *FileKeyStore) GetKey() ([]byte, error) {
	data, err := fileReadFile(f.keyPath())
	if err != nil {
		return nil, err
	}
	return decodeKey(strings.TrimSpace(string(data)))
}

// DeleteKey removes the key file.
func (f *FileKeyStore) DeleteKey() error {
	return fileRemove(f.keyPath())
}

// Logger receives fallback warnings.
type Logger interface {
	Warning(format string, args ...interface{})
}

// FallbackKeyring uses the system keyring and switches to a FileKeyStore
// in configDir once the keyring fails.
type FallbackKeyring struct {
	primary  Provider
	fallback Provider
	log      Logger
}

var _ Provider = (*FallbackKeyring)(nil)

// NewFallbackKeyring creates a keyring backed by the system keyring with a
// file fallback in configDir. log may be nil.
func NewFallbackKeyring(configDir string, log Logger) *FallbackKeyring {
	return &FallbackKeyring{
		primary:  NewKeyring(),
		fallback: NewFileKeyStore(configDir),
		log:      log,
	}
}

// GetKey prefers a key in the file store, which only exists after the
// keyring failed before.
func (k *FallbackKeyring) GetKey() ([]byte, error) {
	if key, err := k.fallback.GetKey(); err == nil {
		return key, nil
	}
	return k.primary.GetKey()
}

func (k *FallbackKeyring) SetKey() ([]byte, error) {
	key, err := k.primary.SetKey()
	if err == nil {
		return key, nil
	}
	k.warn("system keyring unavailable (%v), storing rpc secret in file", err)
	return k.fallback.SetKey()
}

func (k *FallbackKeyring) DeleteKey() error {
	errPrimary := k.primary.DeleteKey()
	errFallback := k.fallback.DeleteKey()
	if errPrimary != nil && errFallback != nil {
		return errPrimary
	}
	return nil
}

func (k *FallbackKeyring) warn(format string, args ...interface{}) {
	if k.log != nil {
		k.log.Warning(format, args...)
	}
}
