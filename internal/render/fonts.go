package render

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"signdesk/internal/fieldtype"
)

// FontSet holds the parsed typefaces, one per field weight. It is safe to
// share; faces built from it are not.
type FontSet struct {
	fonts map[fieldtype.Weight]*opentype.Font
}

// LoadFonts parses the embedded Go fonts.
func LoadFonts() (*FontSet, error) {
	src := map[fieldtype.Weight][]byte{
		fieldtype.WeightRegular: goregular.TTF,
		fieldtype.WeightBold:    gobold.TTF,
		fieldtype.WeightScript:  goitalic.TTF,
	}
	fs := &FontSet{fonts: make(map[fieldtype.Weight]*opentype.Font, len(src))}
	for w, data := range src {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s font: %w", w, err)
		}
		fs.fonts[w] = f
	}
	return fs, nil
}

type faceKey struct {
	weight fieldtype.Weight
	size   int
}

// faceCache builds faces on demand for a single goroutine.
type faceCache struct {
	set   *FontSet
	faces map[faceKey]font.Face
}

func (fs *FontSet) newCache() *faceCache {
	return &faceCache{set: fs, faces: make(map[faceKey]font.Face)}
}

func (c *faceCache) face(w fieldtype.Weight, sizePx int) (font.Face, error) {
	k := faceKey{weight: w, size: sizePx}
	if f, ok := c.faces[k]; ok {
		return f, nil
	}
	ttf, ok := c.set.fonts[w]
	if !ok {
		ttf = c.set.fonts[fieldtype.WeightRegular]
	}
	// DPI 72 makes Size a pixel size.
	f, err := opentype.NewFace(ttf, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     PointsPerInch,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	c.faces[k] = f
	return f, nil
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}
