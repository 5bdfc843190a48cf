package security

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Sealed values are text: a version prefix followed by the base64url form
// of a CBOR map keyed by small integers.
const (
	envelopePrefix    = "rpcsession.secret.v1:"
	envelopeAlgorithm = "xchacha20-poly1305"
)

type envelope struct {
	KeyID      string `cbor:"1,keyasint"`
	Version    int    `cbor:"2,keyasint"`
	Algorithm  string `cbor:"3,keyasint"`
	Nonce      []byte `cbor:"4,keyasint"`
	Ciphertext []byte `cbor:"5,keyasint"`
}

type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

var envelopeEncoding cbor.EncMode

func init() {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("security: cbor encoding mode: %v", err))
	}
	envelopeEncoding = mode
}

// ParseEnvelopeMetadata reads the key metadata of a sealed value without
// opening it.
func ParseEnvelopeMetadata(sealed []byte) (EnvelopeMetadata, error) {
	env, err := openEnvelope(sealed)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{KeyID: env.KeyID, Version: env.Version, Algorithm: env.Algorithm}, nil
}

func (e envelope) seal() ([]byte, error) {
	data, err := envelopeEncoding.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return []byte(envelopePrefix + base64.RawURLEncoding.EncodeToString(data)), nil
}

func openEnvelope(sealed []byte) (envelope, error) {
	if len(sealed) == 0 {
		return envelope{}, fmt.Errorf("security: sealed value is required")
	}
	body, ok := strings.CutPrefix(strings.TrimSpace(string(sealed)), envelopePrefix)
	if !ok {
		return envelope{}, fmt.Errorf("security: invalid envelope prefix")
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("security: decode envelope: %w", err)
	}
	env.KeyID = strings.TrimSpace(env.KeyID)
	env.Algorithm = strings.ToLower(strings.TrimSpace(env.Algorithm))
	switch {
	case len(env.Ciphertext) == 0:
		return envelope{}, fmt.Errorf("security: envelope ciphertext is required")
	case len(env.Nonce) == 0:
		return envelope{}, fmt.Errorf("security: envelope nonce is required")
	}
	return env, nil
}
