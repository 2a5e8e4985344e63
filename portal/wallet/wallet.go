package wallet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "wallet").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "wallet").Logger()
}

var (
	// ErrNoWalletExtension is returned when the provider exposes no wallet extension at all.
	ErrNoWalletExtension = errors.New("no wallet extension found")
	// ErrNoAccounts is returned when the selected extension has no accounts.
	ErrNoAccounts = errors.New("no accounts found in the selected wallet")
)

// Signer signs the payloads the routing service hands out while executing a transfer.
type Signer interface {
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// Account is one account exposed by a wallet extension.
type Account struct {
	Name    string
	Address string
	Signer  Signer
}

// IsEVM reports whether the account address is an EVM address.
func (a Account) IsEVM() bool {
	return IsEVMAddress(a.Address)
}

// Extension is a connected wallet extension.
type Extension interface {
	Name() string
	Accounts(ctx context.Context) ([]Account, error)
}

// Provider discovers and connects wallet extensions.
type Provider interface {
	ListExtensions(ctx context.Context) ([]string, error)
	Connect(ctx context.Context, name string) (Extension, error)
}

// Partition splits the accounts of an extension by address format.
type Partition struct {
	Substrate []Account
	EVM       []Account
}

// Find returns the account with the given address from either list.
func (p Partition) Find(address string) (Account, bool) {
	return lo.Find(append(append([]Account(nil), p.Substrate...), p.EVM...), func(a Account) bool {
		return a.Address == address
	})
}

// PartitionAccounts splits accounts into non-EVM and EVM accounts, keeping their order.
func PartitionAccounts(accounts []Account) Partition {
	evm, substrate := lo.FilterReject(accounts, func(a Account, _ int) bool {
		return a.IsEVM()
	})
	return Partition{Substrate: substrate, EVM: evm}
}

// Discover lists the available extensions, failing with ErrNoWalletExtension when there are none.
func Discover(ctx context.Context, p Provider) ([]string, error) {
	names, err := p.ListExtensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet extensions: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrNoWalletExtension
	}
	log.Debug().Strs("extensions", names).Msg("Discovered wallet extensions")
	return names, nil
}

// Open connects the named extension and partitions its accounts.
// An extension without accounts fails with ErrNoAccounts.
func Open(ctx context.Context, p Provider, name string) (Partition, error) {
	ext, err := p.Connect(ctx, name)
	if err != nil {
		return Partition{}, fmt.Errorf("failed to connect wallet extension %q: %w", name, err)
	}
	accounts, err := ext.Accounts(ctx)
	if err != nil {
		return Partition{}, fmt.Errorf("failed to read accounts of %q: %w", name, err)
	}
	if len(accounts) == 0 {
		return Partition{}, ErrNoAccounts
	}
	part := PartitionAccounts(accounts)
	log.Info().
		Str("extension", ext.Name()).
		Int("substrate_accounts", len(part.Substrate)).
		Int("evm_accounts", len(part.EVM)).
		Msg("Wallet extension connected")
	return part, nil
}
