package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/ludics/pkg/domain"
	"github.com/aretw0/ludics/pkg/ports"
)

// encryptedPrefix marks an expression stored as ciphertext.
const encryptedPrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	passthrough
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts act expressions with
// AES-GCM. Loci, polarity and ramification stay in clear so the store can still
// be inspected; the claims made in a dialogue do not.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Store) ports.Store {
		return &encryptionMiddleware{
			passthrough: passthrough{next},
			config:      config,
		}
	}
}

func (m *encryptionMiddleware) seal(d *domain.Design) (*domain.Design, error) {
	out := d.Clone()
	for i, a := range out.Acts {
		if a.Expression == "" {
			continue
		}
		ciphertext, err := encrypt([]byte(a.Expression), m.config.ActiveKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt act %d: %w", i, err)
		}
		out.Acts[i].Expression = encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext)
	}
	return out, nil
}

func (m *encryptionMiddleware) CreateDesign(ctx context.Context, d *domain.Design) error {
	sealed, err := m.seal(d)
	if err != nil {
		return err
	}
	return m.Store.CreateDesign(ctx, sealed)
}

func (m *encryptionMiddleware) SaveDesign(ctx context.Context, d *domain.Design) error {
	sealed, err := m.seal(d)
	if err != nil {
		return err
	}
	return m.Store.SaveDesign(ctx, sealed)
}

func (m *encryptionMiddleware) GetDesign(ctx context.Context, id string) (*domain.Design, error) {
	d, err := m.Store.GetDesign(ctx, id)
	if err != nil {
		return nil, err
	}
	for i, a := range d.Acts {
		if a.Expression == "" {
			continue
		}
		encoded, ok := strings.CutPrefix(a.Expression, encryptedPrefix)
		if !ok {
			// Fail secure: a configured key means every expression is sealed.
			return nil, fmt.Errorf("act %d of design %s is missing its encrypted envelope", i, id)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
		}
		plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt design %s: %w", id, err)
		}
		d.Acts[i].Expression = string(plain)
	}
	return d, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
