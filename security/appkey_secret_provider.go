package security

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-rpcsession/core"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyDerivationInfo = "rpcsession.session-token"

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals session tokens with XChaCha20-Poly1305 under a
// key derived from application key material via HKDF-SHA256, salted with
// the key id. Key id and version are authenticated as additional data.
type AppKeySecretProvider struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	p := &AppKeySecretProvider{keyID: "app-key", version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, []byte(p.keyID), []byte(keyDerivationInfo)), key); err != nil {
		return nil, fmt.Errorf("security: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("security: create aead: %w", err)
	}
	p.aead = aead
	return p, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: generate nonce: %w", err)
	}
	return envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      nonce,
		Ciphertext: p.aead.Seal(nil, nonce, plaintext, p.boundData()),
	}.seal()
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, sealed []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, err := openEnvelope(sealed)
	if err != nil {
		return nil, err
	}
	switch {
	case env.Algorithm != "" && env.Algorithm != envelopeAlgorithm:
		return nil, fmt.Errorf("security: unsupported envelope algorithm %q", env.Algorithm)
	case env.KeyID != "" && env.KeyID != p.keyID:
		return nil, fmt.Errorf("security: key id mismatch: got %q want %q", env.KeyID, p.keyID)
	case env.Version > 0 && env.Version != p.version:
		return nil, fmt.Errorf("security: key version mismatch: got %d want %d", env.Version, p.version)
	case len(env.Nonce) != p.aead.NonceSize():
		return nil, fmt.Errorf("security: invalid nonce size %d", len(env.Nonce))
	}
	plaintext, err := p.aead.Open(nil, env.Nonce, env.Ciphertext, p.boundData())
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) boundData() []byte {
	return []byte(p.keyID + ":" + strconv.Itoa(p.version))
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
