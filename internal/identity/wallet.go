// Package identity derives the bot's two credentials from one secret: the
// secp256k1 key that signs ledger transactions and the transport address
// peers message the bot at.
package identity

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"io"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"chainchat/go-backend/pkg/models"
)

const hkdfInfoLedger = "chainchat/identity/ledger/v1"

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrMissingSecret   = errors.New("a mnemonic or a private key is required")
)

type Wallet struct {
	key *ecdsa.PrivateKey
}

// FromMnemonic derives the wallet from a BIP-39 mnemonic. The ledger key
// is HKDF-expanded from the seed so the same mnemonic always yields the
// same on-chain identity.
func FromMnemonic(mnemonic string) (*Wallet, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, ErrMissingSecret
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	keyBytes, err := hkdfExpand(seed, hkdfInfoLedger, 32)
	if err != nil {
		return nil, err
	}
	key, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

// FromHex accepts a raw hex-encoded secp256k1 private key, with or
// without a 0x prefix.
func FromHex(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrMissingSecret
	}
	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

// NewRandom generates a throwaway wallet; useful for mock-transport runs
// where no funded account is needed.
func NewRandom() (*Wallet, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

func (w *Wallet) PrivateKey() *ecdsa.PrivateKey {
	return w.key
}

// LedgerAddress is the account the bot transacts from, hex with 0x.
func (w *Wallet) LedgerAddress() string {
	return ethcrypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// TransportID is the bot's address on the message transport: the base58
// rendering of the compressed public key.
func (w *Wallet) TransportID() string {
	return base58.Encode(ethcrypto.CompressPubkey(&w.key.PublicKey))
}

func (w *Wallet) Identity() models.Identity {
	return models.Identity{
		ID:            w.TransportID(),
		SigningPubKey: ethcrypto.CompressPubkey(&w.key.PublicKey),
		LedgerAddress: w.LedgerAddress(),
	}
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
