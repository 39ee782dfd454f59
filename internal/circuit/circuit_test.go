package circuit

import (
	"strings"
	"testing"
)

func TestBell(t *testing.T) {
	c := Bell()
	if c.NumQubits != 2 {
		t.Errorf("NumQubits = %d, want 2", c.NumQubits)
	}
	if !strings.HasPrefix(c.Source, "OPENQASM 3.0;") {
		t.Errorf("source missing version header: %q", c.Source)
	}
	if strings.Count(c.Source, "measure") != 2 {
		t.Errorf("expected two measurements, got source:\n%s", c.Source)
	}
}

func TestDepthLadder(t *testing.T) {
	for _, depth := range []int{1, 4, 7} {
		c := DepthLadder(depth)
		if got := strings.Count(c.Source, "cx "); got != 2*depth {
			t.Errorf("depth %d: cx count = %d, want %d", depth, got, 2*depth)
		}
		if c.NumQubits != 3 {
			t.Errorf("depth %d: NumQubits = %d, want 3", depth, c.NumQubits)
		}
	}
}

func TestRepeatedBell(t *testing.T) {
	tests := []struct {
		reps         int
		wantBarriers int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
	}

	for _, tt := range tests {
		c := RepeatedBell(tt.reps)
		if got := strings.Count(c.Source, "barrier"); got != tt.wantBarriers {
			t.Errorf("reps %d: barriers = %d, want %d", tt.reps, got, tt.wantBarriers)
		}
	}
}
