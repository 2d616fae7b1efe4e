package style

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
)

const (
	// TileSize is the canonical edge length of a raster tile in pixels.
	TileSize = 256

	ZoomMin = 0
	ZoomMax = 20

	// DefaultLanguage is the upstream's "international" label set.
	DefaultLanguage = "int"

	// vectorMarker flags a style as serving vector tiles instead of raster.
	vectorMarker = "vector"

	// overlayPrefix identifies the composable overlay family. Only styles in
	// this family accept a base_style and participate in compositing.
	overlayPrefix = "openrailwaymap-"
)

// Format distinguishes raster imagery from vector tile payloads.
type Format int

const (
	FormatRaster Format = iota
	FormatVector
)

func (f Format) MediaType() string {
	if f == FormatVector {
		return "application/octet-stream"
	}
	return "image/png"
}

// Family is the provider family a style belongs to. Each supported style maps
// to exactly one family; resolution switches on the family rather than falling
// through a string-keyed table.
type Family int

const (
	FamilyJawg Family = iota
	FamilyJawgVector
	FamilyThunderforest
	FamilyOpenRailwayMap
)

// openRailwayMapMirrors are equivalent upstream mirrors. One is picked at
// random per fetch for load distribution; the choice never enters the cache key.
var openRailwayMapMirrors = []string{"a", "b", "c"}

// UnknownStyleError reports a style identifier with no upstream mapping.
type UnknownStyleError struct {
	Style string
}

func (e *UnknownStyleError) Error() string {
	return fmt.Sprintf("unknown tile style: %s", e.Style)
}

// Request is one tile request. Language defaults to DefaultLanguage; BaseStyle
// is only meaningful when Style is in the composable overlay family.
type Request struct {
	Style     string
	Z         int
	X         int
	Y         int
	Language  string
	BaseStyle string
}

// NewRequest builds a Request, applying the language default.
func NewRequest(styleID string, z, x, y int, lang, baseStyle string) Request {
	if lang == "" {
		lang = DefaultLanguage
	}
	return Request{Style: styleID, Z: z, X: x, Y: y, Language: lang, BaseStyle: baseStyle}
}

// IsComposite reports whether this request asks for an overlay blended onto a
// base layer.
func (r Request) IsComposite() bool {
	return r.BaseStyle != "" && IsComposable(r.Style)
}

// Target is one resolved upstream fetch.
type Target struct {
	URL       string
	Format    Format
	MediaType string
}

// Resolver maps style identifiers to upstream tile URLs.
type Resolver struct {
	jawgKey          string
	thunderforestKey string
}

func NewResolver(jawgKey, thunderforestKey string) *Resolver {
	return &Resolver{
		jawgKey:          jawgKey,
		thunderforestKey: thunderforestKey,
	}
}

// FormatOf returns the tile format a style serves.
func FormatOf(styleID string) Format {
	if strings.Contains(styleID, vectorMarker) {
		return FormatVector
	}
	return FormatRaster
}

// IsComposable reports whether a style belongs to the overlay family that may
// be composited onto a base layer.
func IsComposable(styleID string) bool {
	_, ok := overlayVariant(styleID)
	return ok
}

func overlayVariant(styleID string) (string, bool) {
	if !strings.HasPrefix(styleID, overlayPrefix) {
		return "", false
	}
	variant := strings.TrimPrefix(styleID, overlayPrefix)
	switch variant {
	case "standard", "maxspeed", "signals", "electrification":
		return variant, true
	}
	return "", false
}

func familyOf(styleID string) (Family, bool) {
	switch styleID {
	case "jawg-streets", "jawg-lagoon", "jawg-sunny", "jawg-light", "jawg-terrain", "jawg-dark":
		return FamilyJawg, true
	case "jawg-vector":
		return FamilyJawgVector, true
	case "thunderforest-transport":
		return FamilyThunderforest, true
	}
	if _, ok := overlayVariant(styleID); ok {
		return FamilyOpenRailwayMap, true
	}
	return 0, false
}

// Resolve maps a style plus coordinates and language to one upstream target.
// The mapping is total over the supported families; anything else is an
// UnknownStyleError.
func (r *Resolver) Resolve(styleID string, z, x, y int, lang string) (Target, error) {
	family, ok := familyOf(styleID)
	if !ok {
		return Target{}, &UnknownStyleError{Style: styleID}
	}

	format := FormatOf(styleID)
	target := Target{Format: format, MediaType: format.MediaType()}

	switch family {
	case FamilyJawg:
		target.URL = r.jawgURL(styleID, z, x, y, lang, "png")
	case FamilyJawgVector:
		target.URL = r.jawgURL(styleID, z, x, y, lang, "pbf")
	case FamilyThunderforest:
		target.URL = fmt.Sprintf("https://tile.thunderforest.com/transport/%d/%d/%d.png?apikey=%s",
			z, x, y, url.QueryEscape(r.thunderforestKey))
	case FamilyOpenRailwayMap:
		variant, _ := overlayVariant(styleID)
		mirror := openRailwayMapMirrors[rand.Intn(len(openRailwayMapMirrors))]
		target.URL = fmt.Sprintf("https://%s.tiles.openrailwaymap.org/%s/%d/%d/%d.png",
			mirror, variant, z, x, y)
	}

	return target, nil
}

func (r *Resolver) jawgURL(styleID string, z, x, y int, lang, ext string) string {
	u := fmt.Sprintf("https://tile.jawg.io/%s/%d/%d/%d.%s?access-token=%s",
		styleID, z, x, y, ext, url.QueryEscape(r.jawgKey))
	if lang != "" && lang != DefaultLanguage {
		u += "&lang=" + url.QueryEscape(lang)
	}
	return u
}
