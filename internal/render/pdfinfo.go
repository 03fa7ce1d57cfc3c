package render

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"

	"signdesk/internal/domain"
)

var ErrNoPages = errors.New("pdf has no pages")

// PageSizes reads the MediaBox of every page, following inheritance through
// the page tree and swapping axes for pages rotated by 90 or 270 degrees.
func PageSizes(data []byte) (sizes []domain.PageSize, err error) {
	// ledongthuc/pdf panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			sizes, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := rd.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}
	sizes = make([]domain.PageSize, 0, n)
	for i := 1; i <= n; i++ {
		sizes = append(sizes, pageSize(rd.Page(i).V))
	}
	return sizes, nil
}

func pageSize(page pdf.Value) domain.PageSize {
	box := inherited(page, "MediaBox")
	if box.Len() != 4 {
		return domain.LetterPage
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	if w == 0 || h == 0 {
		return domain.LetterPage
	}
	if rot := inherited(page, "Rotate").Int64(); rot%180 != 0 {
		w, h = h, w
	}
	return domain.PageSize{WidthPt: w, HeightPt: h}
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		if got := v.Key(key); !got.IsNull() {
			return got
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}
