package xcmquery

import (
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
)

// MessageType tags one line of the router execution stream.
type MessageType string

const (
	MessageStatus MessageType = "STATUS"
	MessageSign   MessageType = "SIGN"
	MessageResult MessageType = "RESULT"
	MessageError  MessageType = "ERROR"
)

// RouterMessage is a single newline delimited JSON object streamed back by POST /router.
type RouterMessage struct {
	Type MessageType `json:"type"`
	// ID identifies the execution for signature submission and cancellation
	ID     string                `json:"id"`
	Status *transfer.RouterEvent `json:"status,omitempty"`
	// Step is the route step a SIGN message belongs to
	Step int `json:"step,omitempty"`
	// Payload is the hex encoded signing payload of a SIGN message
	Payload string `json:"payload,omitempty"`
	// EVM reports that the payload must be signed by the EVM account
	EVM   bool   `json:"evm,omitempty"`
	Error string `json:"error,omitempty"`
}

// SignatureSubmission answers a SIGN message.
type SignatureSubmission struct {
	Step      int    `json:"step"`
	Signature string `json:"signature"`
}

// ErrorResponse is the JSON body of a non 2xx router response.
type ErrorResponse struct {
	Error string `json:"error"`
}
