// Package assets embeds the default campaign and achievement catalog.
package assets

import "embed"

//go:embed campaign_intro.json achievements.json
var FS embed.FS

const (
	// DefaultCampaign is the embedded starter campaign.
	DefaultCampaign = "campaign_intro.json"
	// DefaultCatalog is the embedded achievement registry.
	DefaultCatalog = "achievements.json"
)
