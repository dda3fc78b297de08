package mux

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// PolicyPublic allows unauthenticated playback.
const PolicyPublic = "public"

// maxPassthrough is the length limit Mux enforces on passthrough metadata.
const maxPassthrough = 255

// Input is one asset input source.
type Input struct {
	URL string `json:"url"`
}

// AssetSettings is the create-asset request body.
type AssetSettings struct {
	Input          []Input  `json:"input"`
	PlaybackPolicy []string `json:"playback_policy"`
	Passthrough    string   `json:"passthrough,omitempty"`
}

// PlaybackID is one stream identifier with its access policy.
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// Asset is the subset of a Mux asset the workflow keeps.
type Asset struct {
	ID          string       `json:"id"`
	Status      string       `json:"status,omitempty"`
	Passthrough string       `json:"passthrough,omitempty"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
}

// NewAssetSettings builds create options for a source URL. The file name
// becomes the passthrough value after NFC normalisation and truncation.
func NewAssetSettings(sourceURL, fileName, policy string) AssetSettings {
	policy = strings.TrimSpace(policy)
	if policy == "" {
		policy = PolicyPublic
	}
	return AssetSettings{
		Input:          []Input{{URL: strings.TrimSpace(sourceURL)}},
		PlaybackPolicy: []string{policy},
		Passthrough:    NormalizePassthrough(fileName),
	}
}

// NormalizePassthrough returns name in NFC form, trimmed and cut to the
// passthrough limit on a rune boundary.
func NormalizePassthrough(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if len(name) <= maxPassthrough {
		return name
	}
	cut := maxPassthrough
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// PublicPlaybackID returns the first public playback id in list order, or ""
// when none is public.
func (a Asset) PublicPlaybackID() string {
	for _, id := range a.PlaybackIDs {
		if id.Policy == PolicyPublic {
			return id.ID
		}
	}
	return ""
}
