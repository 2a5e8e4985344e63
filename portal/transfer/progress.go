package transfer

import (
	"fmt"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
)

// ProgressKind is the closed set of progress notifications shown to the user.
type ProgressKind string

const (
	KindSelectingExchange ProgressKind = "SELECTING_EXCHANGE"
	KindTransfer          ProgressKind = "TRANSFER"
	KindSwap              ProgressKind = "SWAP"
	KindSwapAndTransfer   ProgressKind = "SWAP_AND_TRANSFER"
	KindOther             ProgressKind = "OTHER"
)

// RouterEvent is a raw status notification emitted by the routing service.
type RouterEvent struct {
	Type        string `json:"type"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	CurrentStep int    `json:"currentStep,omitempty"`
	TotalSteps  int    `json:"totalSteps,omitempty"`
}

// ProgressEvent is a router notification mapped onto ProgressKind.
type ProgressEvent struct {
	Kind        ProgressKind    `json:"kind"`
	Origin      assets.ChainRef `json:"origin,omitempty"`
	Destination assets.ChainRef `json:"destination,omitempty"`
	Step        int             `json:"step"`
	TotalSteps  int             `json:"totalSteps,omitempty"`
}

// EventFromRouter maps a router notification; unknown types become KindOther.
func EventFromRouter(ev RouterEvent) ProgressEvent {
	kind := KindOther
	switch ProgressKind(ev.Type) {
	case KindSelectingExchange, KindTransfer, KindSwap, KindSwapAndTransfer:
		kind = ProgressKind(ev.Type)
	}
	return ProgressEvent{
		Kind:        kind,
		Origin:      assets.ChainRef(ev.Origin),
		Destination: assets.ChainRef(ev.Destination),
		Step:        ev.CurrentStep,
		TotalSteps:  ev.TotalSteps,
	}
}

// Message renders the status line for the event.
func (e ProgressEvent) Message() string {
	switch e.Kind {
	case KindTransfer:
		return fmt.Sprintf("Transfering tokens from %s to %s...", e.Origin, e.Destination)
	case KindSwap:
		return "Swapping tokens ..."
	case KindSwapAndTransfer:
		return fmt.Sprintf("Swapping tokens and transfering them from %s to %s...", e.Origin, e.Destination)
	case KindSelectingExchange:
		return "Picking the best exchange..."
	default:
		return "Processing..."
	}
}

// StatusMessage renders e, or the empty string before the first event.
func StatusMessage(e *ProgressEvent) string {
	if e == nil {
		return ""
	}
	return e.Message()
}
