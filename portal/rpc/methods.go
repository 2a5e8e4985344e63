package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/models"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
)

const (
	// PortalServiceName is the fully-qualified name of the portal service.
	PortalServiceName = "portal.v1.PortalService"

	ListChainsProcedure         = "/" + PortalServiceName + "/ListChains"
	GetCurrencyOptionsProcedure = "/" + PortalServiceName + "/GetCurrencyOptions"
	ValidateTransferProcedure   = "/" + PortalServiceName + "/ValidateTransfer"
)

// PortalServer implements the unary portal procedures
type PortalServer struct {
	registry     *config.Registry
	resolver     *assets.Resolver
	sourcePolicy assets.DefaultPolicy
}

// NewPortalServer creates a new PortalServer
func NewPortalServer(registry *config.Registry, resolver *assets.Resolver, sourcePolicy assets.DefaultPolicy) *PortalServer {
	return &PortalServer{
		registry:     registry,
		resolver:     resolver,
		sourcePolicy: sourcePolicy,
	}
}

// ListChains returns the chains, origins and venues of the registry.
func (s *PortalServer) ListChains(
	ctx context.Context,
	req *connect.Request[models.ListChainsRequest],
) (*connect.Response[models.ListChainsResponse], error) {
	return connect.NewResponse(&models.ListChainsResponse{
		Chains:  s.registry.ChainNames(),
		Origins: s.registry.SubstrateChains(),
		Venues:  s.registry.ExchangeVenues(),
	}), nil
}

// GetCurrencyOptions resolves both asset pickers for the given chains and venue.
//
// Returns:
// - 400 Bad Request: unknown chain or venue
// - 503 Service Unavailable: the routing service could not be queried
func (s *PortalServer) GetCurrencyOptions(
	ctx context.Context,
	req *connect.Request[models.CurrencyOptionsRequest],
) (*connect.Response[models.CurrencyOptionsResponse], error) {
	if err := s.checkCatalog(req.Msg.Origin, req.Msg.Destination, req.Msg.Exchange.Venues()); err != nil {
		return nil, err
	}

	form := assets.NewForm(s.resolver, s.sourcePolicy)
	if err := form.SetEndpoints(ctx, req.Msg.Origin, req.Msg.Exchange, req.Msg.Destination); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("could not resolve assets: %w", err))
	}
	return connect.NewResponse(currencyOptions(form)), nil
}

// ValidateTransfer runs the request builder on a form without signing or executing it.
// A rejected form is a valid answer: 200 OK with valid=false.
func (s *PortalServer) ValidateTransfer(
	ctx context.Context,
	req *connect.Request[models.TransferForm],
) (*connect.Response[models.ValidateTransferResponse], error) {
	msg := req.Msg

	form := assets.NewForm(s.resolver, s.sourcePolicy)
	if err := form.SetEndpoints(ctx, msg.Origin, msg.Exchange, msg.Destination); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("could not resolve assets: %w", err))
	}
	form.SelectSource(msg.CurrencyFrom)
	form.SelectDestination(msg.CurrencyTo)

	resp, err := s.validateForm(form, msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(resp), nil
}

func (s *PortalServer) validateForm(form *assets.Form, msg *models.TransferForm) (*models.ValidateTransferResponse, error) {
	reject := func(err error) (*models.ValidateTransferResponse, error) {
		var verr *transfer.ValidationError
		if !errors.As(err, &verr) {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return &models.ValidateTransferResponse{Field: verr.Field, Message: verr.Message}, nil
	}

	if strings.TrimSpace(msg.SenderAddress) != "" {
		if err := validateAddress("senderAddress", msg.SenderAddress, false); err != nil {
			return reject(err)
		}
	}
	if msg.EVMSenderAddress != "" {
		if err := validateAddress("evmSenderAddress", msg.EVMSenderAddress, true); err != nil {
			return reject(err)
		}
	}
	if strings.TrimSpace(msg.RecipientAddress) != "" {
		if err := validateAddress("recipientAddress", msg.RecipientAddress, false); err != nil {
			return reject(err)
		}
	}

	txType, err := transfer.ParseTransactionType(msg.TransactionType)
	if err != nil {
		return reject(err)
	}

	sel := transfer.SelectionsFromForm(form, msg.RecipientAddress, msg.Amount)
	sel.SlippagePct = msg.SlippagePct
	sel.Type = txType

	// an empty sender is reported as "No account selected" by the builder
	var sender transfer.Sender
	if strings.TrimSpace(msg.SenderAddress) != "" {
		sender.Account = &wallet.Account{Address: strings.TrimSpace(msg.SenderAddress), Signer: watchOnlySigner{}}
	}
	if msg.EVMSenderAddress != "" {
		sender.EVMAccount = &wallet.Account{Address: msg.EVMSenderAddress, Signer: watchOnlySigner{}}
	}

	built, err := transfer.BuildRequest(sel, sender, transfer.WithCatalog(s.registry))
	if err != nil {
		return reject(err)
	}
	return &models.ValidateTransferResponse{Valid: true, Request: built}, nil
}

func (s *PortalServer) checkCatalog(origin, destination assets.ChainRef, venues []string) error {
	if origin.IsSet() && !s.registry.IsOrigin(origin) {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown origin chain: %s", origin))
	}
	if destination.IsSet() && !s.registry.IsDestination(destination) {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown destination chain: %s", destination))
	}
	for _, v := range venues {
		if !s.registry.IsVenue(v) {
			return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown exchange: %s", v))
		}
	}
	return nil
}

func currencyOptions(form *assets.Form) *models.CurrencyOptionsResponse {
	source, target := form.Source(), form.Target()
	return &models.CurrencyOptionsResponse{
		From:        source.Assets.Options(),
		To:          target.Assets.Options(),
		DefaultFrom: source.Key,
		DefaultTo:   target.Key,
	}
}

// validateAddress accepts SS58 or EVM addresses, or only EVM when evmOnly is set.
func validateAddress(field, address string, evmOnly bool) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return &transfer.ValidationError{Field: field, Message: "address is required"}
	}
	if wallet.IsEVMAddress(address) {
		return nil
	}
	if evmOnly {
		return &transfer.ValidationError{Field: field, Message: "invalid EVM address"}
	}
	if !wallet.IsSS58Address(address) {
		return &transfer.ValidationError{Field: field, Message: "invalid SS58 or EVM address"}
	}
	return nil
}

// watchOnlySigner stands in for accounts that are only validated, never executed.
type watchOnlySigner struct{}

func (watchOnlySigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return nil, errors.New("watch-only account cannot sign")
}
