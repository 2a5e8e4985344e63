package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/models"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	readWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	maxFrameSize = 64 << 10
)

// StreamHandler serves /ws/transfer: one transfer session per websocket connection.
// Each session resolves assets through its own Resolver over the shared lookup.
// Closing the socket cancels the submission in flight.
type StreamHandler struct {
	upgrader     websocket.Upgrader
	registry     *config.Registry
	lookup       assets.Lookup
	sourcePolicy assets.DefaultPolicy
	router       transfer.Router
	wallets      wallet.Provider
	recorder     transfer.Recorder
}

// NewStreamHandler creates the websocket handler. recorder may be nil.
func NewStreamHandler(deps Dependencies, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*") {
					return true
				}
				return lo.Contains(allowedOrigins, origin)
			},
		},
		registry:     deps.Registry,
		lookup:       deps.Resolver.Lookup(),
		sourcePolicy: deps.SourcePolicy,
		router:       deps.Router,
		wallets:      deps.Wallets,
		recorder:     deps.Recorder,
	}
}

// streamConn serializes writes; gorilla allows one concurrent writer.
type streamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamConn) send(msg models.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *streamConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *streamConn) sendError(err error) error {
	msg := models.ServerMessage{Type: models.ServerError, Message: err.Error()}
	var verr *transfer.ValidationError
	if errors.As(err, &verr) {
		msg.Field, msg.Message = verr.Field, verr.Message
	}
	return c.send(msg)
}

func (h *StreamHandler) newSession() *transfer.Session {
	var opts []transfer.ExecutorOption
	if h.recorder != nil {
		opts = append(opts, transfer.WithRecorder(h.recorder))
	}
	form := assets.NewForm(assets.NewResolver(h.lookup), h.sourcePolicy)
	return transfer.NewSession(h.wallets, form, transfer.NewExecutor(h.router, opts...), transfer.WithCatalog(h.registry))
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := &streamConn{conn: ws}
	metrics.SessionOpened()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		_ = ws.Close()
		metrics.SessionClosed()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	session := h.newSession()
	err = session.Form().SetEndpoints(ctx, transfer.DefaultOrigin, transfer.DefaultVenueSelection(), transfer.DefaultDestination)
	if err != nil {
		_ = conn.sendError(fmt.Errorf("could not resolve default assets: %w", err))
	} else {
		_ = conn.send(models.ServerMessage{Type: models.ServerOptions, Options: currencyOptions(session.Form())})
	}

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	var (
		submitMu     sync.Mutex
		cancelSubmit context.CancelFunc
	)

	for {
		var msg models.ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))

		switch msg.Type {
		case models.ClientSubmit:
			submission, err := submissionFrom(msg)
			if err != nil {
				_ = conn.sendError(err)
				continue
			}
			submitCtx, stop := context.WithCancel(ctx)
			submitMu.Lock()
			cancelSubmit = stop
			submitMu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer stop()
				h.submit(submitCtx, conn, session, submission)
			}()
		case models.ClientCancel:
			submitMu.Lock()
			if cancelSubmit != nil {
				cancelSubmit()
			}
			submitMu.Unlock()
		default:
			if err := h.handle(ctx, conn, session, msg); err != nil {
				_ = conn.sendError(err)
			}
		}
	}
}

// handle applies a wallet or form message and replies with the new state.
func (h *StreamHandler) handle(ctx context.Context, conn *streamConn, session *transfer.Session, msg models.ClientMessage) error {
	switch msg.Type {
	case models.ClientConnectWallet:
		names, err := session.ConnectWallet(ctx)
		if err != nil {
			return err
		}
		return conn.send(models.ServerMessage{Type: models.ServerExtensions, Extensions: names})
	case models.ClientSelectExtension:
		accounts, err := session.SelectExtension(ctx, msg.Extension)
		if err != nil {
			return err
		}
		return conn.send(models.ServerMessage{
			Type:        models.ServerAccounts,
			Accounts:    accountInfos(accounts.Substrate),
			EVMAccounts: accountInfos(accounts.EVM),
		})
	case models.ClientSelectAccount:
		if err := session.SelectAccount(msg.Address); err != nil {
			return err
		}
		return conn.send(models.ServerMessage{Type: models.ServerSelected, Message: msg.Address})
	case models.ClientSelectEVMAccount:
		if err := session.SelectEVMAccount(msg.Address); err != nil {
			return err
		}
		return conn.send(models.ServerMessage{Type: models.ServerSelected, Message: msg.Address})
	case models.ClientSetEndpoints:
		if err := session.Form().SetEndpoints(ctx, msg.Origin, msg.Exchange, msg.Destination); err != nil {
			return fmt.Errorf("could not resolve assets: %w", err)
		}
		return conn.send(models.ServerMessage{Type: models.ServerOptions, Options: currencyOptions(session.Form())})
	case models.ClientSelectSource:
		session.Form().SelectSource(msg.Key)
		return conn.send(models.ServerMessage{Type: models.ServerOptions, Options: currencyOptions(session.Form())})
	case models.ClientSelectTarget:
		session.Form().SelectDestination(msg.Key)
		return conn.send(models.ServerMessage{Type: models.ServerOptions, Options: currencyOptions(session.Form())})
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (h *StreamHandler) submit(ctx context.Context, conn *streamConn, session *transfer.Session, sub transfer.Submission) {
	err := session.Submit(ctx, sub, func(ev transfer.ProgressEvent) {
		_ = conn.send(models.ServerMessage{Type: models.ServerStatus, Status: ev.Message(), Event: &ev})
	})
	if err != nil {
		Logger.Info().Err(err).Msg("Transfer submission failed")
		_ = conn.sendError(err)
		return
	}
	_ = conn.send(models.ServerMessage{Type: models.ServerSuccess, Status: session.StatusMessage()})
}

func submissionFrom(msg models.ClientMessage) (transfer.Submission, error) {
	txType, err := transfer.ParseTransactionType(msg.TransactionType)
	if err != nil {
		return transfer.Submission{}, err
	}
	return transfer.Submission{
		Recipient:   msg.Recipient,
		Amount:      msg.Amount,
		SlippagePct: msg.SlippagePct,
		Type:        txType,
	}, nil
}

func accountInfos(accounts []wallet.Account) []models.AccountInfo {
	return lo.Map(accounts, func(a wallet.Account, _ int) models.AccountInfo {
		return models.AccountInfo{Name: a.Name, Address: a.Address}
	})
}
