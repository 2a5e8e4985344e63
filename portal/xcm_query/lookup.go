package xcmquery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
)

var _ assets.Lookup = (*XcmQueryClient)(nil)

// SupportedAssetsFrom lists the assets that can leave origin through the selected venue.
func (c *XcmQueryClient) SupportedAssetsFrom(ctx context.Context, origin assets.ChainRef, sel venue.Selection) ([]assets.Descriptor, error) {
	params := venueParams(sel)
	params.Set("origin", origin.String())
	return c.queryAssets(ctx, "assets_from", "/assets/from?"+params.Encode())
}

// SupportedAssetsTo lists the assets that can arrive at destination through the selected venue.
func (c *XcmQueryClient) SupportedAssetsTo(ctx context.Context, sel venue.Selection, destination assets.ChainRef) ([]assets.Descriptor, error) {
	params := venueParams(sel)
	params.Set("destination", destination.String())
	return c.queryAssets(ctx, "assets_to", "/assets/to?"+params.Encode())
}

func (c *XcmQueryClient) queryAssets(ctx context.Context, endpoint, path string) ([]assets.Descriptor, error) {
	body, err := c.doRequestWithFailover(ctx, endpoint, path)
	if err != nil {
		return nil, err
	}

	var result []assets.Descriptor
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	log.Debug().Str("endpoint", endpoint).Int("assets", len(result)).Msg("Fetched supported assets")
	return result, nil
}

// venueParams encodes the venue as repeated exchange parameters, none for Auto.
func venueParams(sel venue.Selection) url.Values {
	params := url.Values{}
	for _, v := range sel.Venues() {
		params.Add("exchange", v)
	}
	return params
}
