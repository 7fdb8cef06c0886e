// Package identity manages the wallet's cryptographic identity: an
// Ed25519 signing key pair used to authenticate payment requests, and an
// X25519 key-agreement pair used to establish a Noise-IK session with
// the storage network.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/curve25519"
)

// Identity holds a wallet's signing and key-agreement key pairs.
type Identity struct {
	SigningPublicKey  ed25519.PublicKey  `json:"signing_public_key"`
	SigningPrivateKey ed25519.PrivateKey `json:"signing_private_key"`

	KeyAgreementPublicKey  [32]byte `json:"key_agreement_public_key"`
	KeyAgreementPrivateKey [32]byte `json:"key_agreement_private_key"`
}

// Generate creates a new Identity with fresh key pairs.
func Generate() (*Identity, error) {
	sigPub, sigPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate Ed25519 key pair: %w", err)
	}

	var kaPriv, kaPub [32]byte
	if _, err := rand.Read(kaPriv[:]); err != nil {
		return nil, fmt.Errorf("identity: generate X25519 private key: %w", err)
	}
	curve25519.ScalarBaseMult(&kaPub, &kaPriv)

	return &Identity{
		SigningPublicKey:       sigPub,
		SigningPrivateKey:      sigPriv,
		KeyAgreementPublicKey:  kaPub,
		KeyAgreementPrivateKey: kaPriv,
	}, nil
}

// WalletID returns a short, stable identifier for this identity derived
// from its signing public key, used to tag PayForChunks requests.
func (id *Identity) WalletID() string {
	return fmt.Sprintf("%x", id.SigningPublicKey[:8])
}

// Sign signs data with the identity's Ed25519 private key.
func (id *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(id.SigningPrivateKey, data)
}

// Verify checks an Ed25519 signature made by this identity's public key.
func (id *Identity) Verify(data, sig []byte) bool {
	return ed25519.Verify(id.SigningPublicKey, data, sig)
}

// SaveToFile persists the identity as JSON with restricted permissions.
func (id *Identity) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("identity: create directory: %w", err)
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("identity: marshal: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("identity: write file: %w", err)
	}
	return nil
}

// LoadFromFile loads an identity previously written by SaveToFile.
func LoadFromFile(filename string) (*Identity, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("identity: read file: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("identity: unmarshal: %w", err)
	}
	return &id, nil
}
