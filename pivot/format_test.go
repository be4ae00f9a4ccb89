package pivot

import "testing"

func TestFormatNumberBoundaries(t *testing.T) {
	cases := []struct {
		x    float64
		f    Format
		want string
	}{
		{0.001, F8_2, ".00"},
		{0.00001, F8_2, "1.00E-005"},
		{3, Format{Type: "F", Width: 8, Decimals: 0}, "3"},
		{-0.5, F8_2, "-.50"},
		{0, F8_2, ".00"},
	}
	for _, c := range cases {
		if got := c.f.FormatNumber(c.x); got != c.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", c.x, got, c.want)
		}
	}
}

func TestResultClassFormats(t *testing.T) {
	l := NewDefaultLook()
	if f := l.ResultClassFormat(ResultClassCount); f.Decimals != 0 {
		t.Errorf("COUNT format decimals = %d, want 0", f.Decimals)
	}
	if f := l.ResultClassFormat(ResultClassPercent); f.Type != "PCT" {
		t.Errorf("PERCENT format type = %q, want PCT", f.Type)
	}
}
