package domain

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Wallet is the custodial signing credential: an ed25519 private key plus
// its base58 public address. The secret is only ever read for signing.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string
}

// NewWalletFromBase58 builds a wallet from a base58-encoded key. Both the
// 64-byte keypair encoding and the 32-byte seed encoding are accepted.
func NewWalletFromBase58(encoded string) (*Wallet, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		priv:    priv,
		address: base58.Encode(pub),
	}, nil
}

// Address returns the wallet's base58 public address.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the raw 32-byte public key.
func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.priv.Public().(ed25519.PublicKey)
}

// Sign signs the given message bytes with the wallet's private key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}
