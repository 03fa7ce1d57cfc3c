// Package fieldtype holds the static sizing and font table for each field
// type. The editor and the baker both size text with FontSizePx; a change here
// changes both sides at once.
package fieldtype

import (
	"fmt"
	"math"
	"sort"
)

// Type is the kind of a placed field.
type Type string

const (
	Signature Type = "signature"
	Initial   Type = "initial"
	Date      Type = "date"
	Text      Type = "text"
)

// Weight selects the face the baker draws with.
type Weight string

const (
	WeightRegular Weight = "regular"
	WeightBold    Weight = "bold"
	WeightScript  Weight = "script"
)

// Config is the per-type sizing table entry.
type Config struct {
	Type             Type    `json:"type"`
	MinWidthPct      float64 `json:"minWidthPct"`
	MinHeightPct     float64 `json:"minHeightPct"`
	DefaultWidthPct  float64 `json:"defaultWidthPct"`
	DefaultHeightPct float64 `json:"defaultHeightPct"`
	FontScaleFactor  float64 `json:"fontScaleFactor"`
	MinFontPx        int     `json:"minFontPx"`
	MaxFontPx        int     `json:"maxFontPx"`
	FontWeight       Weight  `json:"fontWeight"`
}

var registry = map[Type]Config{
	Signature: {
		Type:             Signature,
		MinWidthPct:      10,
		MinHeightPct:     3,
		DefaultWidthPct:  20,
		DefaultHeightPct: 6,
		FontScaleFactor:  0.5,
		MinFontPx:        12,
		MaxFontPx:        48,
		FontWeight:       WeightScript,
	},
	Initial: {
		Type:             Initial,
		MinWidthPct:      4,
		MinHeightPct:     3,
		DefaultWidthPct:  8,
		DefaultHeightPct: 6,
		FontScaleFactor:  0.6,
		MinFontPx:        10,
		MaxFontPx:        36,
		FontWeight:       WeightBold,
	},
	Date: {
		Type:             Date,
		MinWidthPct:      8,
		MinHeightPct:     2.5,
		DefaultWidthPct:  15,
		DefaultHeightPct: 4,
		FontScaleFactor:  0.35,
		MinFontPx:        8,
		MaxFontPx:        24,
		FontWeight:       WeightRegular,
	},
	Text: {
		Type:             Text,
		MinWidthPct:      5,
		MinHeightPct:     2.5,
		DefaultWidthPct:  20,
		DefaultHeightPct: 4,
		FontScaleFactor:  0.35,
		MinFontPx:        8,
		MaxFontPx:        24,
		FontWeight:       WeightRegular,
	},
}

// ErrUnknown is returned for a type missing from the table.
type ErrUnknown struct{ Type Type }

func (e ErrUnknown) Error() string { return fmt.Sprintf("unknown field type %q", string(e.Type)) }

// Lookup returns the table entry for t.
func Lookup(t Type) (Config, error) {
	cfg, ok := registry[t]
	if !ok {
		return Config{}, ErrUnknown{Type: t}
	}
	return cfg, nil
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := registry[t]
	return ok
}

// Table returns every entry ordered by type name.
func Table() []Config {
	out := make([]Config, 0, len(registry))
	for _, cfg := range registry {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// FontSizePx is round(clamp(heightPx*scale, minFontPx, maxFontPx)). Unknown
// types size like Text.
func FontSizePx(t Type, heightPx float64) int {
	cfg, ok := registry[t]
	if !ok {
		cfg = registry[Text]
	}
	return cfg.FontSizePx(heightPx)
}

// FontSizePx applies the formula with this entry's constants.
func (c Config) FontSizePx(heightPx float64) int {
	size := heightPx * c.FontScaleFactor
	if math.IsNaN(size) || size < float64(c.MinFontPx) {
		size = float64(c.MinFontPx)
	}
	if size > float64(c.MaxFontPx) {
		size = float64(c.MaxFontPx)
	}
	return int(math.Round(size))
}
