package transfer_test

import (
	"context"
	"errors"
	"sync"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
)

func str(s string) *string { return &s }

// MockRouter is a mock implementation of transfer.Router for testing
type MockRouter struct {
	mu       sync.Mutex
	Events   []transfer.RouterEvent
	FailAt   int // fail after this many events when > 0
	Err      error
	Calls    int
	Requests []*transfer.Request
	// StopErrors collects the errors returned by the status callback
	StopErrors []error
	// BeforeEvent runs before each event is emitted
	BeforeEvent func(i int)
}

func (m *MockRouter) Execute(ctx context.Context, req *transfer.Request, onStatus transfer.StatusFunc) error {
	m.mu.Lock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	for i, ev := range m.Events {
		if m.FailAt > 0 && i == m.FailAt {
			return m.Err
		}
		if m.BeforeEvent != nil {
			m.BeforeEvent(i)
		}
		if err := onStatus(ev); err != nil {
			m.StopErrors = append(m.StopErrors, err)
			return err
		}
	}
	if m.FailAt == 0 && m.Err != nil {
		return m.Err
	}
	return nil
}

// MockSigner is a mock implementation of wallet.Signer for testing
type MockSigner struct{}

func (MockSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return append([]byte("signed:"), payload...), nil
}

// MockLookup is a mock implementation of assets.Lookup for testing
type MockLookup struct {
	From map[assets.ChainRef][]assets.Descriptor
	To   map[assets.ChainRef][]assets.Descriptor
}

func (m *MockLookup) SupportedAssetsFrom(ctx context.Context, origin assets.ChainRef, sel venue.Selection) ([]assets.Descriptor, error) {
	return m.From[origin], nil
}

func (m *MockLookup) SupportedAssetsTo(ctx context.Context, sel venue.Selection, destination assets.ChainRef) ([]assets.Descriptor, error) {
	return m.To[destination], nil
}

// MockProvider is a mock implementation of wallet.Provider for testing
type MockProvider struct {
	Accounts []wallet.Account
}

type mockExtension struct {
	accounts []wallet.Account
}

func (e *mockExtension) Name() string { return "mock" }

func (e *mockExtension) Accounts(ctx context.Context) ([]wallet.Account, error) {
	return e.accounts, nil
}

func (m *MockProvider) ListExtensions(ctx context.Context) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	return []string{"mock"}, nil
}

func (m *MockProvider) Connect(ctx context.Context, name string) (wallet.Extension, error) {
	if name != "mock" {
		return nil, errors.New("unknown extension")
	}
	return &mockExtension{accounts: m.Accounts}, nil
}

// MockRecorder is a mock implementation of transfer.Recorder for testing
type MockRecorder struct {
	Outcomes []transfer.Outcome
}

func (m *MockRecorder) Record(ctx context.Context, outcome transfer.Outcome) error {
	m.Outcomes = append(m.Outcomes, outcome)
	return nil
}

const (
	substrateAddr = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	evmAddr       = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

var vdotLocation = []byte(`{"parents":1,"interior":{"X2":[{"Parachain":2030},{"GeneralKey":{"length":2,"data":"0x0900"}}]}}`)

func newTestLookup() *MockLookup {
	return &MockLookup{
		From: map[assets.ChainRef][]assets.Descriptor{
			"Astar": {
				{Symbol: str("ASTR")},
				{Symbol: str("DOT"), AssetID: str("340282366920938463463374607431768211455")},
			},
		},
		To: map[assets.ChainRef][]assets.Descriptor{
			"BifrostPolkadot": {
				{Symbol: str("BNC")},
				{Symbol: str("vDOT"), MultiLocation: vdotLocation},
			},
		},
	}
}

func substrateAccount() *wallet.Account {
	return &wallet.Account{Name: "alice", Address: substrateAddr, Signer: MockSigner{}}
}

func evmAccount() *wallet.Account {
	return &wallet.Account{Name: "metamask", Address: evmAddr, Signer: MockSigner{}}
}

var fullRoute = []transfer.RouterEvent{
	{Type: "SELECTING_EXCHANGE"},
	{Type: "TRANSFER", Origin: "Astar", Destination: "Hydration", CurrentStep: 0, TotalSteps: 3},
	{Type: "SWAP", CurrentStep: 1, TotalSteps: 3},
	{Type: "TRANSFER", Origin: "Hydration", Destination: "BifrostPolkadot", CurrentStep: 2, TotalSteps: 3},
}
