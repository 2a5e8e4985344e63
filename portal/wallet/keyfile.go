package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/crypto/blake2b"
)

// Account kinds of a keyfile.
const (
	KindSubstrate = "substrate"
	KindEVM       = "evm"
)

// DefaultSS58Prefix is the generic substrate network prefix.
const DefaultSS58Prefix = 42

// Keyfile is the on-disk layout read by LoadKeyfile.
//
//	[[extensions]]
//	name = "local"
//	  [[extensions.accounts]]
//	  name = "treasury"
//	  kind = "substrate"
//	  private_key = "0x..."
//	  ss58_prefix = 0
type Keyfile struct {
	Extensions []KeyfileExtension `toml:"extensions"`
}

type KeyfileExtension struct {
	Name     string           `toml:"name"`
	Accounts []KeyfileAccount `toml:"accounts"`
}

type KeyfileAccount struct {
	Name       string  `toml:"name"`
	Kind       string  `toml:"kind"`
	PrivateKey string  `toml:"private_key"`
	SS58Prefix *uint16 `toml:"ss58_prefix"`
}

// KeyfileProvider serves wallet extensions from secp256k1 keys kept in a local file.
// Substrate accounts use the ECDSA MultiSigner scheme, EVM accounts the usual Ethereum scheme.
type KeyfileProvider struct {
	order      []string
	extensions map[string]*keyfileExtension
}

type keyfileExtension struct {
	name     string
	accounts []Account
}

func (e *keyfileExtension) Name() string {
	return e.name
}

func (e *keyfileExtension) Accounts(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Account(nil), e.accounts...), nil
}

// LoadKeyfile reads a TOML keyfile and derives the accounts it describes.
func LoadKeyfile(path string) (*KeyfileProvider, error) {
	if !strings.HasSuffix(path, ".toml") {
		return nil, fmt.Errorf("keyfile must be a .toml file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyfile %s: %w", path, err)
	}
	var kf Keyfile
	if err := toml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse keyfile %s: %w", path, err)
	}
	return NewKeyfileProvider(kf)
}

// NewKeyfileProvider derives addresses and signers for every account of kf.
func NewKeyfileProvider(kf Keyfile) (*KeyfileProvider, error) {
	p := &KeyfileProvider{extensions: make(map[string]*keyfileExtension, len(kf.Extensions))}
	for _, ext := range kf.Extensions {
		if ext.Name == "" {
			return nil, fmt.Errorf("extension without a name")
		}
		if _, dup := p.extensions[ext.Name]; dup {
			return nil, fmt.Errorf("duplicate extension %q", ext.Name)
		}
		accounts := make([]Account, 0, len(ext.Accounts))
		for i, acc := range ext.Accounts {
			account, err := deriveAccount(acc)
			if err != nil {
				return nil, fmt.Errorf("extension %q account %d: %w", ext.Name, i, err)
			}
			accounts = append(accounts, account)
		}
		p.order = append(p.order, ext.Name)
		p.extensions[ext.Name] = &keyfileExtension{name: ext.Name, accounts: accounts}
	}
	return p, nil
}

func (p *KeyfileProvider) ListExtensions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), p.order...), nil
}

func (p *KeyfileProvider) Connect(ctx context.Context, name string) (Extension, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext, ok := p.extensions[name]
	if !ok {
		return nil, fmt.Errorf("unknown wallet extension %q", name)
	}
	return ext, nil
}

func deriveAccount(acc KeyfileAccount) (Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(acc.PrivateKey, "0x"))
	if err != nil {
		return Account{}, fmt.Errorf("invalid private key: %w", err)
	}

	switch acc.Kind {
	case KindEVM:
		return Account{
			Name:    acc.Name,
			Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
			Signer:  &ecdsaSigner{key: key, digest: crypto.Keccak256},
		}, nil
	case KindSubstrate, "":
		prefix := uint16(DefaultSS58Prefix)
		if acc.SS58Prefix != nil {
			prefix = *acc.SS58Prefix
		}
		accountID := blake2b.Sum256(crypto.CompressPubkey(&key.PublicKey))
		address, err := EncodeSS58(prefix, accountID[:])
		if err != nil {
			return Account{}, err
		}
		return Account{
			Name:    acc.Name,
			Address: address,
			Signer:  &ecdsaSigner{key: key, digest: blake2b256},
		}, nil
	default:
		return Account{}, fmt.Errorf("unknown account kind %q", acc.Kind)
	}
}

func blake2b256(data ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// ecdsaSigner produces 65 byte recoverable secp256k1 signatures over digest(payload).
type ecdsaSigner struct {
	key    *ecdsa.PrivateKey
	digest func(data ...[]byte) []byte
}

func (s *ecdsaSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(s.digest(payload), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}
	return sig, nil
}
