package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
)

// Submission carries the free-text fields of the transfer form.
type Submission struct {
	Recipient   string
	Amount      string
	SlippagePct string
	Type        *TransactionType
}

// Session is one user's transfer form: wallet selection, both asset sides and the
// status of the submission in flight.
type Session struct {
	provider wallet.Provider
	form     *assets.Form
	executor *Executor
	opts     []BuildOption

	mu         sync.Mutex
	extensions []string
	accounts   wallet.Partition
	account    *wallet.Account
	evmAccount *wallet.Account
	busy       bool
	progress   *ProgressEvent
	lastErr    error
}

// NewSession wires a session to its collaborators. opts are passed to BuildRequest.
func NewSession(provider wallet.Provider, form *assets.Form, executor *Executor, opts ...BuildOption) *Session {
	return &Session{
		provider: provider,
		form:     form,
		executor: executor,
		opts:     opts,
	}
}

// Form returns the asset form of the session.
func (s *Session) Form() *assets.Form {
	return s.form
}

// ConnectWallet lists the wallet extensions.
func (s *Session) ConnectWallet(ctx context.Context) ([]string, error) {
	names, err := wallet.Discover(ctx, s.provider)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.mu.Lock()
	s.extensions = names
	s.mu.Unlock()
	return names, nil
}

// SelectExtension connects an extension and replaces the known accounts.
// Any previously selected account is cleared.
func (s *Session) SelectExtension(ctx context.Context, name string) (wallet.Partition, error) {
	part, err := wallet.Open(ctx, s.provider, name)
	if err != nil {
		s.fail(err)
		return wallet.Partition{}, err
	}
	s.mu.Lock()
	s.accounts = part
	s.account = nil
	s.evmAccount = nil
	s.mu.Unlock()
	return part, nil
}

// SelectAccount chooses the signing account among the connected non-EVM accounts.
func (s *Session) SelectAccount(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts.Substrate {
		if s.accounts.Substrate[i].Address == address {
			acc := s.accounts.Substrate[i]
			s.account = &acc
			return nil
		}
	}
	return fmt.Errorf("account %s is not available in the connected wallet", address)
}

// SelectEVMAccount chooses the optional EVM account; an empty address clears it.
func (s *Session) SelectEVMAccount(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address == "" {
		s.evmAccount = nil
		return nil
	}
	for i := range s.accounts.EVM {
		if s.accounts.EVM[i].Address == address {
			acc := s.accounts.EVM[i]
			s.evmAccount = &acc
			return nil
		}
	}
	return fmt.Errorf("EVM account %s is not available in the connected wallet", address)
}

// Submit validates the form and executes the transfer, forwarding progress to onProgress.
// Only one submission runs at a time; the busy flag is cleared however Submit returns and
// the status line is cleared when it fails.
func (s *Session) Submit(ctx context.Context, sub Submission, onProgress ProgressFunc) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.lastErr = nil
	s.progress = nil
	sender := Sender{Account: s.account, EVMAccount: s.evmAccount}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	sel := SelectionsFromForm(s.form, sub.Recipient, sub.Amount)
	sel.SlippagePct = sub.SlippagePct
	sel.Type = sub.Type

	req, err := BuildRequest(sel, sender, s.opts...)
	if err != nil {
		s.fail(err)
		return err
	}

	err = s.executor.Execute(ctx, req, func(ev ProgressEvent) {
		s.mu.Lock()
		s.progress = &ev
		s.mu.Unlock()
		if onProgress != nil {
			onProgress(ev)
		}
	})
	if err != nil {
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.progress = nil
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// StatusMessage is the status line of the latest progress event.
func (s *Session) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusMessage(s.progress)
}

// LastError is the error of the last failed action, nil after a success.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Extensions returns the extension names found by ConnectWallet.
func (s *Session) Extensions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.extensions...)
}
