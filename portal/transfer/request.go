package transfer

import (
	"strings"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
	"github.com/shopspring/decimal"
)

// DefaultSlippagePct is applied when a submission leaves slippage empty.
const DefaultSlippagePct = "1"

var maxSlippage = decimal.NewFromInt(100)

// TransactionType optionally narrows which legs of the route the router executes.
type TransactionType string

const (
	TypeFullTransfer  TransactionType = "FULL_TRANSFER"
	TypeToExchange    TransactionType = "TO_EXCHANGE"
	TypeSwap          TransactionType = "SWAP"
	TypeToDestination TransactionType = "TO_DESTINATION"
)

// ParseTransactionType returns nil for the empty string.
func ParseTransactionType(s string) (*TransactionType, error) {
	if s == "" {
		return nil, nil
	}
	t := TransactionType(strings.ToUpper(s))
	switch t {
	case TypeFullTransfer, TypeToExchange, TypeSwap, TypeToDestination:
		return &t, nil
	default:
		return nil, &ValidationError{Field: "type", Message: "unknown transaction type " + s}
	}
}

// Request is everything the routing service needs to execute one transfer.
type Request struct {
	Origin           assets.ChainRef      `json:"from"`
	Destination      assets.ChainRef      `json:"to"`
	Venue            venue.Selection      `json:"exchange"`
	CurrencyFrom     assets.CurrencyInput `json:"currencyFrom"`
	CurrencyTo       assets.CurrencyInput `json:"currencyTo"`
	Amount           string               `json:"amount"`
	SenderAddress    string               `json:"senderAddress"`
	RecipientAddress string               `json:"recipientAddress"`
	EVMSenderAddress string               `json:"evmSenderAddress,omitempty"`
	SlippagePct      string               `json:"slippagePct"`
	Type             *TransactionType     `json:"type,omitempty"`

	Signer    wallet.Signer `json:"-"`
	EVMSigner wallet.Signer `json:"-"`
}

// Selections is the state of the transfer form at submission time.
type Selections struct {
	Origin      assets.ChainRef
	Venue       venue.Selection
	Destination assets.ChainRef
	Source      assets.Side
	Target      assets.Side

	Recipient   string
	Amount      string
	SlippagePct string
	Type        *TransactionType
}

// SelectionsFromForm copies the chains, venue and both sides out of form.
func SelectionsFromForm(form *assets.Form, recipient, amount string) Selections {
	return Selections{
		Origin:      form.Origin(),
		Venue:       form.Venue(),
		Destination: form.Destination(),
		Source:      form.Source(),
		Target:      form.Target(),
		Recipient:   recipient,
		Amount:      amount,
	}
}

// Sender is the selected wallet account plus the optional EVM account.
type Sender struct {
	Account    *wallet.Account
	EVMAccount *wallet.Account
}

// Catalog knows which chains and venues the portal serves.
type Catalog interface {
	IsOrigin(chain assets.ChainRef) bool
	IsDestination(chain assets.ChainRef) bool
	IsVenue(name string) bool
}

type buildConfig struct {
	catalog Catalog
}

// BuildOption configures BuildRequest.
type BuildOption func(*buildConfig)

// WithCatalog makes BuildRequest reject chains and venues unknown to c.
func WithCatalog(c Catalog) BuildOption {
	return func(b *buildConfig) {
		b.catalog = c
	}
}

// BuildRequest validates the form state and assembles a Request. It performs no I/O.
// Any failure is a *ValidationError.
func BuildRequest(sel Selections, sender Sender, opts ...BuildOption) (*Request, error) {
	req, err := buildRequest(sel, sender, opts...)
	if err != nil {
		if verr, ok := err.(*ValidationError); ok {
			metrics.RecordValidationFailure(verr.Field)
		}
		return nil, err
	}
	return req, nil
}

func buildRequest(sel Selections, sender Sender, opts ...BuildOption) (*Request, error) {
	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if sender.Account == nil {
		return nil, &ValidationError{Field: "account", Message: "No account selected"}
	}
	if sender.Account.Signer == nil {
		return nil, &ValidationError{Field: "account", Message: "selected account cannot sign"}
	}
	if !sel.Origin.IsSet() {
		return nil, &ValidationError{Field: "from", Message: "origin chain is required"}
	}
	if !sel.Destination.IsSet() {
		return nil, &ValidationError{Field: "to", Message: "destination chain is required"}
	}

	venueSel := venue.Normalize(sel.Venue)
	if cfg.catalog != nil {
		if !cfg.catalog.IsOrigin(sel.Origin) {
			return nil, &ValidationError{Field: "from", Message: "unsupported origin chain " + sel.Origin.String()}
		}
		if !cfg.catalog.IsDestination(sel.Destination) {
			return nil, &ValidationError{Field: "to", Message: "unsupported destination chain " + sel.Destination.String()}
		}
		for _, v := range venueSel.Venues() {
			if !cfg.catalog.IsVenue(v) {
				return nil, &ValidationError{Field: "exchange", Message: "unsupported exchange " + v}
			}
		}
	}

	from, ok := sel.Source.Selected()
	if !ok {
		return nil, &ValidationError{Field: "currencyFrom", Message: "currency not resolved"}
	}
	to, ok := sel.Target.Selected()
	if !ok {
		return nil, &ValidationError{Field: "currencyTo", Message: "currency not resolved"}
	}

	recipient := strings.TrimSpace(sel.Recipient)
	if recipient == "" {
		return nil, &ValidationError{Field: "recipientAddress", Message: "recipient address is required"}
	}

	amount := strings.TrimSpace(sel.Amount)
	if amount == "" {
		return nil, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Message: "amount must be numeric"}
	}
	if !amt.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}

	slippage := strings.TrimSpace(sel.SlippagePct)
	if slippage == "" {
		slippage = DefaultSlippagePct
	}
	slip, err := decimal.NewFromString(slippage)
	if err != nil {
		return nil, &ValidationError{Field: "slippagePct", Message: "slippage must be numeric"}
	}
	if slip.IsNegative() || slip.GreaterThan(maxSlippage) {
		return nil, &ValidationError{Field: "slippagePct", Message: "slippage must be between 0 and 100"}
	}

	req := &Request{
		Origin:           sel.Origin,
		Destination:      sel.Destination,
		Venue:            venueSel,
		CurrencyFrom:     from.Currency(),
		CurrencyTo:       to.Currency(),
		Amount:           amount,
		SenderAddress:    sender.Account.Address,
		RecipientAddress: recipient,
		SlippagePct:      slippage,
		Type:             sel.Type,
		Signer:           sender.Account.Signer,
	}
	if sender.EVMAccount != nil {
		req.EVMSenderAddress = sender.EVMAccount.Address
		req.EVMSigner = sender.EVMAccount.Signer
	}
	return req, nil
}
