// Package session establishes a Noise-IK secured, identity-bound session
// between the wallet and the storage network before any paid RPC is
// issued.
package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/flynn/noise"
	"github.com/meshstore/netup/pkg/codec/cborcanon"
	"github.com/meshstore/netup/pkg/identity"
)

// protocolVersion is the session handshake's wire version.
const protocolVersion uint16 = 1

// Hello is the handshake message exchanged by both the wallet client and
// the storage network, carrying the sender's X25519 Noise key signed by
// their long-term Ed25519 identity key.
type Hello struct {
	Version  uint16 `cbor:"v"`
	WalletID string `cbor:"wallet"`
	NoiseKey []byte `cbor:"noisekey"`
	Proof    []byte `cbor:"proof"`
}

// Sign signs h with privateKey, covering every field except Proof.
func (h *Hello) Sign(privateKey ed25519.PrivateKey) error {
	data, err := cborcanon.EncodeForSigning(h, "proof")
	if err != nil {
		return fmt.Errorf("session: encode hello for signing: %w", err)
	}
	h.Proof = ed25519.Sign(privateKey, data)
	return nil
}

// Verify checks h's signature against publicKey.
func (h *Hello) Verify(publicKey ed25519.PublicKey) error {
	if len(h.Proof) == 0 {
		return fmt.Errorf("session: hello has no proof")
	}
	data, err := cborcanon.EncodeForSigning(h, "proof")
	if err != nil {
		return fmt.Errorf("session: encode hello for verification: %w", err)
	}
	if !ed25519.Verify(publicKey, data, h.Proof) {
		return fmt.Errorf("session: hello signature verification failed")
	}
	return nil
}

// Marshal encodes h as canonical CBOR.
func (h *Hello) Marshal() ([]byte, error) {
	return cborcanon.Marshal(h)
}

// Unmarshal decodes h from canonical CBOR.
func (h *Hello) Unmarshal(data []byte) error {
	return cborcanon.Unmarshal(data, h)
}

// Handshake drives one side of a Noise-IK handshake between the wallet
// and the storage network.
type Handshake struct {
	id          *identity.Identity
	isInitiator bool
	noiseState  *noise.HandshakeState
	cipherSuite noise.CipherSuite
	complete    bool
}

func newCipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)
}

// NewClientHandshake starts the wallet side of the handshake, knowing the
// storage network's static X25519 public key in advance.
func NewClientHandshake(id *identity.Identity, networkPublicKey []byte) (*Handshake, error) {
	h := &Handshake{id: id, isInitiator: true, cipherSuite: newCipherSuite()}

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: h.cipherSuite,
		Random:      rand.Reader,
		Pattern:     noise.HandshakeIK,
		Initiator:   true,
		StaticKeypair: noise.DHKey{
			Private: id.KeyAgreementPrivateKey[:],
			Public:  id.KeyAgreementPublicKey[:],
		},
		PeerStatic: networkPublicKey,
	})
	if err != nil {
		return nil, fmt.Errorf("session: create client handshake state: %w", err)
	}
	h.noiseState = state
	return h, nil
}

// NewServerHandshake starts the storage network's side of the handshake.
func NewServerHandshake(id *identity.Identity) (*Handshake, error) {
	h := &Handshake{id: id, isInitiator: false, cipherSuite: newCipherSuite()}

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: h.cipherSuite,
		Random:      rand.Reader,
		Pattern:     noise.HandshakeIK,
		Initiator:   false,
		StaticKeypair: noise.DHKey{
			Private: id.KeyAgreementPrivateKey[:],
			Public:  id.KeyAgreementPublicKey[:],
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session: create server handshake state: %w", err)
	}
	h.noiseState = state
	return h, nil
}

// CreateHello builds and signs this side's Hello message.
func (h *Handshake) CreateHello() (*Hello, error) {
	hello := &Hello{
		Version:  protocolVersion,
		WalletID: h.id.WalletID(),
		NoiseKey: h.id.KeyAgreementPublicKey[:],
	}
	if err := hello.Sign(h.id.SigningPrivateKey); err != nil {
		return nil, fmt.Errorf("session: sign hello: %w", err)
	}
	return hello, nil
}

// Step performs one handshake message exchange: it writes a handshake
// message (optionally wrapping payload) and returns the bytes to send.
func (h *Handshake) Step(payload []byte) ([]byte, error) {
	if h.noiseState == nil {
		return nil, fmt.Errorf("session: handshake state not initialized")
	}
	msg, cs1, cs2, err := h.noiseState.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("session: handshake write: %w", err)
	}
	if cs1 != nil && cs2 != nil {
		h.complete = true
	}
	return msg, nil
}

// ReadStep processes an incoming handshake message, returning any
// embedded payload.
func (h *Handshake) ReadStep(msg []byte) ([]byte, error) {
	if h.noiseState == nil {
		return nil, fmt.Errorf("session: handshake state not initialized")
	}
	payload, cs1, cs2, err := h.noiseState.ReadMessage(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("session: handshake read: %w", err)
	}
	if cs1 != nil && cs2 != nil {
		h.complete = true
	}
	return payload, nil
}

// IsComplete reports whether the handshake has finished.
func (h *Handshake) IsComplete() bool {
	return h.complete
}
