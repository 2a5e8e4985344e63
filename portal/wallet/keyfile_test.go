package wallet_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/assert"
	"golang.org/x/crypto/blake2b"
)

const testKey = "0x289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"

func writeKeyfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing keyfile: %v", err)
	}
	return path
}

func TestLoadKeyfile_DerivesAccounts(t *testing.T) {
	path := writeKeyfile(t, `
[[extensions]]
name = "local"

  [[extensions.accounts]]
  name = "relay"
  kind = "substrate"
  private_key = "`+testKey+`"
  ss58_prefix = 0

  [[extensions.accounts]]
  name = "evm"
  kind = "evm"
  private_key = "`+testKey+`"
`)

	provider, err := wallet.LoadKeyfile(path)
	assert.NoError(t, err)

	ctx := context.Background()
	names, err := wallet.Discover(ctx, provider)
	assert.NoError(t, err)
	assert.DeepEqual(t, names, []string{"local"})

	part, err := wallet.Open(ctx, provider, "local")
	assert.NoError(t, err)
	assert.Equal(t, len(part.Substrate), 1)
	assert.Equal(t, len(part.EVM), 1)

	prefix, _, err := wallet.DecodeSS58(part.Substrate[0].Address)
	assert.NoError(t, err)
	assert.Equal(t, prefix, uint16(0))
	assert.True(t, wallet.IsEVMAddress(part.EVM[0].Address))
}

func TestKeyfileSigners_Recoverable(t *testing.T) {
	provider, err := wallet.NewKeyfileProvider(wallet.Keyfile{
		Extensions: []wallet.KeyfileExtension{{
			Name: "local",
			Accounts: []wallet.KeyfileAccount{
				{Name: "relay", Kind: wallet.KindSubstrate, PrivateKey: testKey},
				{Name: "evm", Kind: wallet.KindEVM, PrivateKey: testKey},
			},
		}},
	})
	assert.NoError(t, err)

	ctx := context.Background()
	part, err := wallet.Open(ctx, provider, "local")
	assert.NoError(t, err)
	payload := []byte("xcm transfer payload")

	evm := part.EVM[0]
	sig, err := evm.Signer.Sign(ctx, payload)
	assert.NoError(t, err)
	assert.Equal(t, len(sig), 65)
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	assert.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(*pub).Hex(), evm.Address)

	substrate := part.Substrate[0]
	sig, err = substrate.Signer.Sign(ctx, payload)
	assert.NoError(t, err)
	digest := blake2b.Sum256(payload)
	pub, err = crypto.SigToPub(digest[:], sig)
	assert.NoError(t, err)
	accountID := blake2b.Sum256(crypto.CompressPubkey(pub))
	address, err := wallet.EncodeSS58(wallet.DefaultSS58Prefix, accountID[:])
	assert.NoError(t, err)
	assert.Equal(t, address, substrate.Address)
}

func TestNewKeyfileProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		kf   wallet.Keyfile
	}{
		{
			name: "bad key",
			kf: wallet.Keyfile{Extensions: []wallet.KeyfileExtension{{
				Name:     "local",
				Accounts: []wallet.KeyfileAccount{{Name: "x", PrivateKey: "zz"}},
			}}},
		},
		{
			name: "unknown kind",
			kf: wallet.Keyfile{Extensions: []wallet.KeyfileExtension{{
				Name:     "local",
				Accounts: []wallet.KeyfileAccount{{Name: "x", Kind: "cosmos", PrivateKey: testKey}},
			}}},
		},
		{
			name: "duplicate extension",
			kf:   wallet.Keyfile{Extensions: []wallet.KeyfileExtension{{Name: "a"}, {Name: "a"}}},
		},
		{
			name: "unnamed extension",
			kf:   wallet.Keyfile{Extensions: []wallet.KeyfileExtension{{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wallet.NewKeyfileProvider(tt.kf)
			assert.Error(t, err)
		})
	}
}

func TestLoadKeyfile_WrongExtension(t *testing.T) {
	_, err := wallet.LoadKeyfile("keys.yaml")
	assert.Error(t, err)
}

func TestKeyfileProvider_EmptyExtension(t *testing.T) {
	provider, err := wallet.NewKeyfileProvider(wallet.Keyfile{
		Extensions: []wallet.KeyfileExtension{{Name: "empty"}},
	})
	assert.NoError(t, err)
	_, err = wallet.Open(context.Background(), provider, "empty")
	assert.Equal(t, err, wallet.ErrNoAccounts)
}
