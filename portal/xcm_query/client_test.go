package xcmquery_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	xcmquery "github.com/Cogwheel-Validator/spectra-xcm-portal/portal/xcm_query"
	"github.com/zeebo/assert"
)

func testConfig() xcmquery.FailoverConfig {
	return xcmquery.FailoverConfig{
		MaxRetries:          1,
		RetryDelay:          time.Millisecond,
		HealthCheckInterval: time.Hour,
		Timeout:             2 * time.Second,
	}
}

// MockSigner is a mock implementation of wallet.Signer for testing
type MockSigner struct {
	Payloads [][]byte
}

func (m *MockSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	m.Payloads = append(m.Payloads, payload)
	return []byte{0xde, 0xad}, nil
}

func TestSupportedAssetsFrom(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/assets/from")
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"symbol":"ASTR"},{"symbol":"USDT","assetId":"1984"}]`))
	}))
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)
	defer client.Close()

	list, err := client.SupportedAssetsFrom(context.Background(), "Astar", venue.Single("HydrationDex"))
	assert.NoError(t, err)
	assert.Equal(t, len(list), 2)
	assert.Equal(t, list[1].Key(), assets.Key("USDT-1984"))
	assert.Equal(t, gotQuery, "exchange=HydrationDex&origin=Astar")
}

func TestSupportedAssetsTo_AutoSendsNoExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/assets/to")
		assert.Equal(t, r.URL.Query().Get("destination"), "BifrostPolkadot")
		assert.Equal(t, len(r.URL.Query()["exchange"]), 0)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClient(srv.URL)
	assert.NoError(t, err)

	list, err := client.SupportedAssetsTo(context.Background(), venue.Auto(), "BifrostPolkadot")
	assert.NoError(t, err)
	assert.Equal(t, len(list), 0)
}

func TestLookup_RetriesThenFailsOver(t *testing.T) {
	var primaryHits int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryHits, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`[{"symbol":"DOT"}]`))
	}))
	defer backup.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(primary.URL, []string{backup.URL, "::not a url"}, testConfig())
	assert.NoError(t, err)
	defer client.Close()

	list, err := client.SupportedAssetsFrom(context.Background(), "Polkadot", venue.Auto())
	assert.NoError(t, err)
	assert.Equal(t, len(list), 1)
	// initial attempt plus one retry before failing over
	assert.Equal(t, atomic.LoadInt32(&primaryHits), int32(2))
}

func TestLookup_AllEndpointsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	_, err = client.SupportedAssetsFrom(context.Background(), "Astar", venue.Auto())
	assert.Error(t, err)
	t.Logf("lookup error: %v", err)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := xcmquery.NewXcmQueryClient("not a url")
	assert.Error(t, err)
}

// routerServer streams lines from script and records signatures and cancellations.
type routerServer struct {
	mu         sync.Mutex
	script     []string
	posts      int
	signatures []xcmquery.SignatureSubmission
	cancelled  []string
	status     int
}

func (s *routerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/router":
		s.posts++
		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":"no route found"}`))
			return
		}
		var req transfer.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range s.script {
			_, _ = fmt.Fprintln(w, line)
		}
	case r.URL.Path == "/router/exec-1/signatures":
		var sub xcmquery.SignatureSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		s.signatures = append(s.signatures, sub)
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/router/exec-1/cancel":
		s.cancelled = append(s.cancelled, "exec-1")
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func testRequest(signer *MockSigner) *transfer.Request {
	return &transfer.Request{
		Origin:           "Astar",
		Destination:      "BifrostPolkadot",
		Venue:            venue.Single("HydrationDex"),
		CurrencyFrom:     assets.CurrencyInput{Kind: assets.CurrencyBySymbol, Value: "ASTR"},
		CurrencyTo:       assets.CurrencyInput{Kind: assets.CurrencyBySymbol, Value: "BNC"},
		Amount:           "1000",
		SenderAddress:    "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		RecipientAddress: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		SlippagePct:      "1",
		Signer:           signer,
	}
}

func TestExecute_StreamsStatusAndSigns(t *testing.T) {
	rs := &routerServer{script: []string{
		`{"type":"STATUS","id":"exec-1","status":{"type":"SELECTING_EXCHANGE"}}`,
		`{"type":"SIGN","id":"exec-1","step":0,"payload":"0x0102"}`,
		`{"type":"STATUS","id":"exec-1","status":{"type":"TRANSFER","origin":"Astar","destination":"Hydration","currentStep":0,"totalSteps":2}}`,
		`{"type":"RESULT","id":"exec-1"}`,
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	signer := &MockSigner{}
	var events []transfer.RouterEvent
	err = client.Execute(context.Background(), testRequest(signer), func(ev transfer.RouterEvent) error {
		events = append(events, ev)
		return nil
	})
	assert.NoError(t, err)

	assert.Equal(t, len(events), 2)
	assert.Equal(t, events[1].Origin, "Astar")
	assert.Equal(t, events[1].TotalSteps, 2)
	assert.Equal(t, len(signer.Payloads), 1)
	assert.DeepEqual(t, signer.Payloads[0], []byte{0x01, 0x02})
	assert.Equal(t, len(rs.signatures), 1)
	assert.Equal(t, rs.signatures[0].Signature, "0xdead")
}

func TestExecute_RouterErrorIsNotRetried(t *testing.T) {
	rs := &routerServer{status: http.StatusUnprocessableEntity}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	err = client.Execute(context.Background(), testRequest(&MockSigner{}), func(transfer.RouterEvent) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, err.Error(), "HTTP 422: no route found")
	assert.Equal(t, rs.posts, 1)
}

func TestExecute_StreamError(t *testing.T) {
	rs := &routerServer{script: []string{
		`{"type":"STATUS","id":"exec-1","status":{"type":"TRANSFER"}}`,
		`{"type":"ERROR","id":"exec-1","error":"dispatch failed"}`,
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	err = client.Execute(context.Background(), testRequest(&MockSigner{}), func(transfer.RouterEvent) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, err.Error(), "router: dispatch failed")
}

func TestExecute_StopRequestCancelsExecution(t *testing.T) {
	rs := &routerServer{script: []string{
		`{"type":"STATUS","id":"exec-1","status":{"type":"TRANSFER"}}`,
		`{"type":"STATUS","id":"exec-1","status":{"type":"SWAP"}}`,
		`{"type":"RESULT","id":"exec-1"}`,
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	var seen int
	err = client.Execute(context.Background(), testRequest(&MockSigner{}), func(transfer.RouterEvent) error {
		seen++
		return transfer.ErrCancelled
	})
	assert.True(t, errors.Is(err, transfer.ErrCancelled))
	assert.Equal(t, seen, 1)
	assert.DeepEqual(t, rs.cancelled, []string{"exec-1"})
}

func TestExecute_MissingEVMSigner(t *testing.T) {
	rs := &routerServer{script: []string{
		`{"type":"SIGN","id":"exec-1","step":1,"payload":"0x01","evm":true}`,
		`{"type":"RESULT","id":"exec-1"}`,
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	err = client.Execute(context.Background(), testRequest(&MockSigner{}), func(transfer.RouterEvent) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, len(rs.cancelled), 1)
}

func TestExecute_TruncatedStream(t *testing.T) {
	rs := &routerServer{script: []string{
		`{"type":"STATUS","id":"exec-1","status":{"type":"TRANSFER"}}`,
	}}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	client, err := xcmquery.NewXcmQueryClientWithFailover(srv.URL, nil, testConfig())
	assert.NoError(t, err)

	err = client.Execute(context.Background(), testRequest(&MockSigner{}), func(transfer.RouterEvent) error { return nil })
	assert.Error(t, err)
}
