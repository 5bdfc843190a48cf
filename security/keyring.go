package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-rpcsession/core"
)

// KeyRing encrypts with the active key and decrypts with whichever key
// sealed the value, so stored session tokens survive a key rotation.
type KeyRing struct {
	active   *AppKeySecretProvider
	previous map[string]*AppKeySecretProvider
}

func NewKeyRing(active *AppKeySecretProvider, previous ...*AppKeySecretProvider) (*KeyRing, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active key is required")
	}
	ring := &KeyRing{active: active, previous: map[string]*AppKeySecretProvider{}}
	for _, provider := range previous {
		if provider == nil {
			continue
		}
		ring.previous[keyRef(provider.KeyID(), provider.Version())] = provider
	}
	return ring, nil
}

func (r *KeyRing) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if r == nil || r.active == nil {
		return nil, fmt.Errorf("security: key ring is not configured")
	}
	return r.active.Encrypt(ctx, plaintext)
}

func (r *KeyRing) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if r == nil || r.active == nil {
		return nil, fmt.Errorf("security: key ring is not configured")
	}
	metadata, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	if metadata.KeyID == r.active.KeyID() && metadata.Version == r.active.Version() {
		return r.active.Decrypt(ctx, ciphertext)
	}
	provider, ok := r.previous[keyRef(metadata.KeyID, metadata.Version)]
	if !ok {
		return nil, fmt.Errorf("security: no key for %s", keyRef(metadata.KeyID, metadata.Version))
	}
	return provider.Decrypt(ctx, ciphertext)
}

// NeedsRotation reports whether ciphertext was sealed by a key other than
// the active one.
func (r *KeyRing) NeedsRotation(ciphertext []byte) bool {
	metadata, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil || r == nil || r.active == nil {
		return false
	}
	return metadata.KeyID != r.active.KeyID() || metadata.Version != r.active.Version()
}

func keyRef(keyID string, version int) string {
	return fmt.Sprintf("%s/v%d", keyID, version)
}

var _ core.SecretProvider = (*KeyRing)(nil)
