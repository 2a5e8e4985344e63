package models

import (
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
)

// ListChainsRequest - POST body of ListChains, currently empty
type ListChainsRequest struct{}

// ListChainsResponse lists the catalog the form offers
type ListChainsResponse struct {
	Chains  []string `json:"chains"`  // every chain, valid destinations
	Origins []string `json:"origins"` // substrate chains, valid origins
	Venues  []string `json:"venues"`  // exchange venues, "Auto" excluded
}

// CurrencyOptionsRequest - POST body of GetCurrencyOptions
type CurrencyOptionsRequest struct {
	Origin      assets.ChainRef `json:"from"`
	Exchange    venue.Selection `json:"exchange"` // null, a venue name or a list of venue names
	Destination assets.ChainRef `json:"to"`
}

// CurrencyOptionsResponse holds both asset pickers with their default selections
type CurrencyOptionsResponse struct {
	From        []assets.Option `json:"from"`
	To          []assets.Option `json:"to"`
	DefaultFrom assets.Key      `json:"defaultFrom,omitempty"`
	DefaultTo   assets.Key      `json:"defaultTo,omitempty"`
}

// TransferForm is the form state sent by ValidateTransfer
type TransferForm struct {
	Origin           assets.ChainRef `json:"from"`
	Exchange         venue.Selection `json:"exchange"`
	Destination      assets.ChainRef `json:"to"`
	CurrencyFrom     assets.Key      `json:"currencyFrom"`
	CurrencyTo       assets.Key      `json:"currencyTo"`
	Amount           string          `json:"amount"`
	SenderAddress    string          `json:"senderAddress"`
	EVMSenderAddress string          `json:"evmSenderAddress,omitempty"`
	RecipientAddress string          `json:"recipientAddress"`
	SlippagePct      string          `json:"slippagePct,omitempty"`
	TransactionType  string          `json:"type,omitempty"`
}

// ValidateTransferResponse echoes the router request the form would produce.
// Valid is false with Field and Message set when the form is rejected.
type ValidateTransferResponse struct {
	Valid   bool              `json:"valid"`
	Field   string            `json:"field,omitempty"`
	Message string            `json:"message,omitempty"`
	Request *transfer.Request `json:"request,omitempty"`
}

// ClientMessageType tags a websocket message sent by the browser
type ClientMessageType string

const (
	ClientConnectWallet    ClientMessageType = "connect_wallet"
	ClientSelectExtension  ClientMessageType = "select_extension"
	ClientSelectAccount    ClientMessageType = "select_account"
	ClientSelectEVMAccount ClientMessageType = "select_evm_account"
	ClientSetEndpoints     ClientMessageType = "set_endpoints"
	ClientSelectSource     ClientMessageType = "select_source"
	ClientSelectTarget     ClientMessageType = "select_destination"
	ClientSubmit           ClientMessageType = "submit"
	ClientCancel           ClientMessageType = "cancel"
)

// ClientMessage is one websocket frame from the browser. Only the fields of Type are read.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`

	Extension string `json:"extension,omitempty"`
	Address   string `json:"address,omitempty"`

	Origin      assets.ChainRef `json:"from,omitempty"`
	Exchange    venue.Selection `json:"exchange"`
	Destination assets.ChainRef `json:"to,omitempty"`
	Key         assets.Key      `json:"key,omitempty"`

	Recipient       string `json:"recipientAddress,omitempty"`
	Amount          string `json:"amount,omitempty"`
	SlippagePct     string `json:"slippagePct,omitempty"`
	TransactionType string `json:"transactionType,omitempty"`
}

// ServerMessageType tags a websocket message sent to the browser
type ServerMessageType string

const (
	ServerExtensions ServerMessageType = "extensions"
	ServerAccounts   ServerMessageType = "accounts"
	ServerOptions    ServerMessageType = "options"
	ServerSelected   ServerMessageType = "selected"
	ServerStatus     ServerMessageType = "status"
	ServerSuccess    ServerMessageType = "success"
	ServerError      ServerMessageType = "error"
)

// AccountInfo describes a wallet account without its signer
type AccountInfo struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// ServerMessage is one websocket frame to the browser
type ServerMessage struct {
	Type ServerMessageType `json:"type"`

	Extensions  []string      `json:"extensions,omitempty"`
	Accounts    []AccountInfo `json:"accounts,omitempty"`
	EVMAccounts []AccountInfo `json:"evmAccounts,omitempty"`

	Options *CurrencyOptionsResponse `json:"options,omitempty"`

	Status string                  `json:"status,omitempty"`
	Event  *transfer.ProgressEvent `json:"event,omitempty"`

	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}
