package authsvc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrInvalidKey is returned when a key file does not hold a PEM encoded RSA key.
	ErrInvalidKey = errors.New("invalid signing key")
	ErrWeakKey    = errors.New("signing key too small")
)

const (
	pkcs1BlockType = "RSA PRIVATE KEY"
	pkcs8BlockType = "PRIVATE KEY"

	MinKeySize     = 2048
	DefaultKeySize = 2048
)

// DecodePrivateKey parses a PEM encoded RSA key, either PKCS #1 as written
// by EncodePrivateKey or PKCS #8 as written by `openssl genpkey`.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode key: %w: no PEM block", ErrInvalidKey)
	}

	switch block.Type {
	case pkcs1BlockType:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidKey, err)
		}

		return key, nil
	case pkcs8BlockType:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Join(ErrInvalidKey, err)
		}

		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("decode key: %w: %T is not RSA", ErrInvalidKey, parsed)
		}

		return key, nil
	default:
		return nil, fmt.Errorf("decode key: %w: unexpected block %q", ErrInvalidKey, block.Type)
	}
}

func GeneratePrivateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return key, nil
}

func EncodePrivateKey(key *rsa.PrivateKey) []byte {
	//nolint:exhaustruct
	return pem.EncodeToMemory(&pem.Block{
		Type:  pkcs1BlockType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// GetPrivateKey loads the signing key at path. A missing file is created
// with a fresh key of the given size and mode 0600. The file is created
// exclusively; if another process wins the race its key is loaded instead.
func GetPrivateKey(path string, bits int) (*rsa.PrivateKey, error) {
	key, err := loadPrivateKey(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return key, err
	}

	key, err = GeneratePrivateKey(max(bits, MinKeySize))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return loadPrivateKey(path)
	} else if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}

	_, err = file.Write(EncodePrivateKey(key))
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write key file: %w", err)
	}

	return key, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key, err := DecodePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if size := key.N.BitLen(); size < MinKeySize {
		return nil, fmt.Errorf("%s: %w: %d bits, need %d", path, ErrWeakKey, size, MinKeySize)
	}

	return key, nil
}
