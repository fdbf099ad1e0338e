package utils

import "testing"

func TestParsePercent(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"3.25%", 3.25, false},
		{"-0.40%", -0.4, false},
		{"+1.1%", 1.1, false},
		{" 2 % ", 2, false},
		{"0.5", 0.5, false},
		{"", 0, true},
		{"abc%", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePercent(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePercent(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePercent(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatPercentRoundTrip(t *testing.T) {
	for _, v := range []float64{3.25, -0.4, 0, 12} {
		got, err := ParsePercent(FormatPercent(v))
		if err != nil || got != v {
			t.Errorf("round trip %v -> %q -> %v (%v)", v, FormatPercent(v), got, err)
		}
	}
}

func TestParseNumber(t *testing.T) {
	v, ok, err := ParseNumber("1,234,567")
	if err != nil || !ok || v != 1234567 {
		t.Errorf("ParseNumber(1,234,567) = %v, %v, %v", v, ok, err)
	}
	if _, ok, err := ParseNumber("-"); ok || err != nil {
		t.Errorf("ParseNumber(-) = ok %v, err %v; want placeholder", ok, err)
	}
	if _, _, err := ParseNumber("n/a"); err == nil {
		t.Error("expected error for n/a")
	}
}
