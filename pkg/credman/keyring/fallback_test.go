package keyring

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileKeyStore_SetGetDelete(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	key, err := store.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}

	keyPath := filepath.Join(tmpDir, keyFileName)
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("key file not created: %v", err)
	}
	if info.Mode().Perm() != keyFileMode {
		t.Fatalf("expected permissions %o, got %o", keyFileMode, info.Mode().Perm())
	}

	gotKey, err := store.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(key, gotKey) {
		t.Fatalf("roundtrip failed: set %x, got %x", key, gotKey)
	}

	if err := store.DeleteKey(); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := os.Stat(keyPath); !os.IsNotExist(err) {
		t.Fatal("key file should be deleted")
	}
}

func TestFileKeyStore_GetKey_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	_, err := store.GetKey()
	if err == nil {
		t.Fatal("expected error for missing key file")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.IsNotExist error, got: %v", err)
	}
}

func TestFileKeyStore_GetKey_InvalidHex(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	keyPath := filepath.Join(tmpDir, keyFileName)
	if err := os.WriteFile(keyPath, []byte("not-valid-hex!"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := store.GetKey()
	if err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestFileKeyStore_GetKey_WrongLength(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	keyPath := filepath.Join(tmpDir, keyFileName)
	if err := os.WriteFile(keyPath, []byte("aabbccdd"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := store.GetKey()
	if err == nil {
		t.Fatal("expected error for wrong key length")
	}
}

func TestFileKeyStore_SetKey_RandError(t *testing.T) {
	origRandRead := fileRandRead
	defer func() { fileRandRead = origRandRead }()

	fileRandRead = func(b []byte) (int, error) {
		return 0, errors.New("rand fail")
	}

	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	_, err := store.SetKey()
	if err == nil {
		t.Fatal("expected error for rand failure")
	}
}

func TestFileKeyStore_SetKey_MkdirError(t *testing.T) {
	origMkdirAll := fileMkdirAll
	defer func() { fileMkdirAll = origMkdirAll }()

	fileMkdirAll = func(path string, perm os.FileMode) error {
		return errors.New("mkdir fail")
	}

	store := NewFileKeyStore("/nonexistent/path")

	_, err := store.SetKey()
	if err == nil {
		t.Fatal("expected error for mkdir failure")
	}
}

func TestFileKeyStore_SetKey_RenameError(t *testing.T) {
	origRename := fileRename
	defer func() { fileRename = origRename }()

	fileRename = func(oldpath, newpath string) error {
		os.Remove(oldpath)
		return errors.New("rename fail")
	}

	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	_, err := store.SetKey()
	if err == nil {
		t.Fatal("expected error for rename failure")
	}
}

func TestFileKeyStore_DeleteKey_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	err := store.DeleteKey()
	if err == nil {
		t.Fatal("expected error for deleting non-existent key")
	}
}

func TestFileKeyStore_SetKey_OverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewFileKeyStore(tmpDir)

	key1, err := store.SetKey()
	if err != nil {
		t.Fatalf("first SetKey: %v", err)
	}

	key2, err := store.SetKey()
	if err != nil {
		t.Fatalf("second SetKey: %v", err)
	}

	if bytes.Equal(key1, key2) {
		t.Fatal("second SetKey should generate different key")
	}

	gotKey, err := store.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(key2, gotKey) {
		t.Fatal("GetKey should return second key")
	}
}

type fakeProvider struct {
	key     []byte
	setErr  error
	getErr  error
	deleted bool
}

func (f *fakeProvider) SetKey() ([]byte, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.key = bytes.Repeat([]byte{0x07}, KeySize)
	return f.key, nil
}

func (f *fakeProvider) GetKey() ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.key == nil {
		return nil, errors.New("not found")
	}
	return f.key, nil
}

func (f *fakeProvider) DeleteKey() error {
	f.deleted = true
	return nil
}

type warnRecorder struct{ calls int }

func (w *warnRecorder) Warning(string, ...interface{}) { w.calls++ }

func TestFallbackKeyring_UsesFileWhenKeyringFails(t *testing.T) {
	tmpDir := t.TempDir()
	log := &warnRecorder{}
	primary := &fakeProvider{setErr: errors.New("no dbus"), getErr: errors.New("no dbus")}
	k := &FallbackKeyring{primary: primary, fallback: NewFileKeyStore(tmpDir), log: log}

	key, err := k.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if log.calls != 1 {
		t.Fatalf("expected one fallback warning, got %d", log.calls)
	}
	got, err := k.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(key, got) {
		t.Fatalf("GetKey = %x, want %x", got, key)
	}
}

func TestFallbackKeyring_PrefersKeyring(t *testing.T) {
	primary := &fakeProvider{}
	k := &FallbackKeyring{primary: primary, fallback: NewFileKeyStore(t.TempDir())}

	key, err := k.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if !bytes.Equal(key, primary.key) {
		t.Fatal("key should come from the system keyring")
	}
	got, err := k.GetKey()
	if err != nil || !bytes.Equal(got, key) {
		t.Fatalf("GetKey = %x, %v", got, err)
	}
	if err := k.DeleteKey(); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if !primary.deleted {
		t.Fatal("DeleteKey should reach the system keyring")
	}
}

func TestSecretGeneratesOnce(t *testing.T) {
	p := &fakeProvider{}
	first, err := Secret(p)
	if err != nil {
		t.Fatalf("Secret: %v", err)
	}
	if len(first) != 2*KeySize {
		t.Fatalf("expected %d hex chars, got %d", 2*KeySize, len(first))
	}
	p.setErr = errors.New("must not regenerate")
	second, err := Secret(p)
	if err != nil {
		t.Fatalf("second Secret: %v", err)
	}
	if first != second {
		t.Fatalf("secret changed: %q then %q", first, second)
	}

	if _, err := Secret(&fakeProvider{setErr: errors.New("locked")}); err == nil {
		t.Fatal("expected error when nothing can store the secret")
	}
}
