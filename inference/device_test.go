package inference

import "testing"

func TestParseDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "auto", false},
		{"auto", "auto", false},
		{"cpu", "cpu", false},
		{"cuda", "cuda:0", false},
		{"gpu", "cuda:0", false},
		{"cuda:3", "cuda:3", false},
		{"tpu", "", true},
		{"cuda:-1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDevice(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got device %v", d)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDevice(%q) error: %v", tt.in, err)
			}
			if d.String() != tt.want {
				t.Errorf("ParseDevice(%q) = %q, want %q", tt.in, d.String(), tt.want)
			}
		})
	}
}

func TestAuto_FallsBackToCPU(t *testing.T) {
	c := Auto().candidates()
	if len(c) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(c))
	}
	if c[0].name() != "cuda:0" || c[1].name() != "cpu" {
		t.Errorf("unexpected order: %s, %s", c[0].name(), c[1].name())
	}
}
