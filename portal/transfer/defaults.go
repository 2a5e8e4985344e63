package transfer

import (
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
)

// Values the transfer form starts with.
const (
	DefaultOrigin      assets.ChainRef = "Astar"
	DefaultVenue                       = "HydrationDex"
	DefaultDestination assets.ChainRef = "BifrostPolkadot"
	DefaultRecipient                   = "5F5586mfsnM6durWRLptYt3jSUs55KEmahdodQ5tQMr9iY96"
	DefaultAmount                      = "1000000000000000000000000"
)

// DefaultVenueSelection is the venue preselected in a new form.
func DefaultVenueSelection() venue.Selection {
	return venue.Single(DefaultVenue)
}
