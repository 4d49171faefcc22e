package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Ed25519Provider is the default Provider: it signs with a stdlib
// ed25519 key pair and self-signs its own identity document (the same
// key both authors entries and attests to the identity that names it).
type Ed25519Provider struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	id   Identity
}

// NewEd25519Provider builds a provider from an existing key pair and
// pre-computes the self-signed identity document.
func NewEd25519Provider(priv ed25519.PrivateKey) (*Ed25519Provider, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity: invalid ed25519 private key size %d", len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	pubHex := hex.EncodeToString(pub)

	idSig := ed25519.Sign(priv, []byte(pubHex))
	pkSig := ed25519.Sign(priv, append([]byte(pubHex), idSig...))

	return &Ed25519Provider{
		priv: priv,
		pub:  pub,
		id: Identity{
			ID:        pubHex,
			PublicKey: pubHex,
			Signatures: Signatures{
				ID:        hex.EncodeToString(idSig),
				PublicKey: hex.EncodeToString(pkSig),
			},
			Type: "ed25519",
		},
	}, nil
}

// GenerateEd25519Provider creates a fresh random key pair.
func GenerateEd25519Provider() (*Ed25519Provider, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return NewEd25519Provider(priv)
}

func (p *Ed25519Provider) Identity(ctx context.Context) (Identity, error) {
	return p.id, nil
}

// PrivateKey returns the raw key backing this provider, so callers can
// persist it (e.g. via SaveEncrypted) after generating one.
func (p *Ed25519Provider) PrivateKey() ed25519.PrivateKey {
	return p.priv
}

func (p *Ed25519Provider) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(p.priv, msg), nil
}

func (p *Ed25519Provider) Verify(ctx context.Context, publicKey string, msg, sig []byte) (bool, error) {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return false, fmt.Errorf("identity: decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("identity: invalid public key size %d", len(pub))
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
}
