package xcmquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var _ transfer.Router = (*XcmQueryClient)(nil)

const cancelTimeout = 5 * time.Second

// Execute posts req to the router and follows the execution stream until it settles.
// The POST is sent once to the current endpoint and never retried, so a transfer
// cannot be dispatched twice. Signing requests are answered with the request's signers.
func (c *XcmQueryClient) Execute(ctx context.Context, req *transfer.Request, onStatus transfer.StatusFunc) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode router request: %w", err)
	}

	base := c.getCurrentURL()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/router", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		metrics.RecordRouterRequest("router", "error")
		return fmt.Errorf("router request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRouterRequest("router", "error")
		return responseError(resp)
	}
	metrics.RecordRouterRequest("router", "ok")

	var executionID string
	decoder := json.NewDecoder(resp.Body)
	for {
		var msg RouterMessage
		if err := decoder.Decode(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return errors.New("router stream ended without a result")
			}
			return fmt.Errorf("failed to decode router stream: %w", err)
		}
		if msg.ID != "" {
			executionID = msg.ID
		}

		switch msg.Type {
		case MessageStatus:
			if msg.Status == nil {
				continue
			}
			if err := onStatus(*msg.Status); err != nil {
				c.cancelExecution(ctx, base, executionID)
				return err
			}
		case MessageSign:
			if err := c.answerSign(ctx, base, executionID, req, msg); err != nil {
				c.cancelExecution(ctx, base, executionID)
				return err
			}
		case MessageResult:
			log.Info().Str("id", executionID).Msg("Router execution finished")
			return nil
		case MessageError:
			return fmt.Errorf("router: %s", msg.Error)
		default:
			log.Debug().Str("type", string(msg.Type)).Msg("Ignoring unknown router message")
		}
	}
}

// answerSign signs the payload of a SIGN message and posts the signature back.
func (c *XcmQueryClient) answerSign(ctx context.Context, base, id string, req *transfer.Request, msg RouterMessage) error {
	signer := req.Signer
	if msg.EVM {
		signer = req.EVMSigner
	}
	if signer == nil {
		return fmt.Errorf("router requested an %s signature but no signer is set", signerKind(msg.EVM))
	}

	data, err := hexutil.Decode(msg.Payload)
	if err != nil {
		return fmt.Errorf("invalid signing payload: %w", err)
	}
	sig, err := signer.Sign(ctx, data)
	if err != nil {
		return fmt.Errorf("signing step %d: %w", msg.Step, err)
	}

	body, err := json.Marshal(SignatureSubmission{Step: msg.Step, Signature: hexutil.Encode(sig)})
	if err != nil {
		return err
	}
	return c.post(ctx, "signatures", base+"/router/"+url.PathEscape(id)+"/signatures", body)
}

// cancelExecution tells the router to stop; failures are only logged.
func (c *XcmQueryClient) cancelExecution(ctx context.Context, base, id string) {
	if id == "" {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	if err := c.post(cctx, "cancel", base+"/router/"+url.PathEscape(id)+"/cancel", nil); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Failed to cancel router execution")
	}
}

func (c *XcmQueryClient) post(ctx context.Context, endpoint, fullURL string, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordRouterRequest(endpoint, "error")
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		metrics.RecordRouterRequest(endpoint, "error")
		return responseError(resp)
	}
	metrics.RecordRouterRequest(endpoint, "ok")
	return nil
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e ErrorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
}

func signerKind(evm bool) string {
	if evm {
		return "EVM"
	}
	return "account"
}
