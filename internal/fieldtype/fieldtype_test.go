package fieldtype

import "testing"

func TestFontSizePx_MonotonicAndBounded(t *testing.T) {
	for _, cfg := range Table() {
		prev := 0
		for h := 0.0; h <= 400; h += 0.25 {
			got := FontSizePx(cfg.Type, h)
			if got < cfg.MinFontPx || got > cfg.MaxFontPx {
				t.Fatalf("%s: height %v gave %d outside [%d,%d]", cfg.Type, h, got, cfg.MinFontPx, cfg.MaxFontPx)
			}
			if got < prev {
				t.Fatalf("%s: font size decreased from %d to %d at height %v", cfg.Type, prev, got, h)
			}
			prev = got
		}
	}
}

func TestFontSizePx_KnownValues(t *testing.T) {
	cases := []struct {
		typ    Type
		height float64
		want   int
	}{
		{Signature, 48, 24},
		{Signature, 10, 12},
		{Signature, 500, 48},
		{Initial, 48, 29},
		{Date, 32, 11},
		{Text, 15, 8},
		{Text, 100, 24},
	}
	for _, tc := range cases {
		if got := FontSizePx(tc.typ, tc.height); got != tc.want {
			t.Errorf("FontSizePx(%s, %v): expected %d, got %d", tc.typ, tc.height, tc.want, got)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("stamp"); err == nil {
		t.Error("expected error for unknown type")
	}
	if Type("stamp").Valid() {
		t.Error("expected stamp to be invalid")
	}
}

func TestTable_DefaultsFitMinimums(t *testing.T) {
	table := Table()
	if len(table) != 4 {
		t.Fatalf("expected 4 types, got %d", len(table))
	}
	for _, cfg := range table {
		if cfg.DefaultWidthPct < cfg.MinWidthPct || cfg.DefaultHeightPct < cfg.MinHeightPct {
			t.Errorf("%s: defaults below minimums", cfg.Type)
		}
		if cfg.MinFontPx > cfg.MaxFontPx {
			t.Errorf("%s: font bounds crossed", cfg.Type)
		}
	}
}
