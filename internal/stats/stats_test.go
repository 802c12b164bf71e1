package stats

import "testing"

func TestUnit_String(t *testing.T) {
	cases := []struct {
		value uint64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{10000, "10000 B"},
		{10001, "10 kB"},
		{15_000_000, "15 MB"},
	}

	for _, c := range cases {
		got := Unit{Value: c.value, Suffix: "B"}.String()
		if got != c.want {
			t.Errorf("Unit{%d}.String() = %q, want %q", c.value, got, c.want)
		}
	}
}

func TestStats_MonotoneCounters(t *testing.T) {
	var s Stats

	s.AddConnection()
	s.AddConnection()
	if got := s.Connections(); got != 2 {
		t.Fatalf("Connections() = %d, want 2", got)
	}

	s.AddRxBytes(10)
	s.AddRxBytes(5)
	if got := s.Rx().Value; got != 15 {
		t.Fatalf("Rx().Value = %d, want 15", got)
	}

	s.AddTxBytes(3)
	if got := s.Tx().Value; got != 3 {
		t.Fatalf("Tx().Value = %d, want 3", got)
	}

	// Zero/negative additions must not move the counter.
	s.AddRxBytes(0)
	if got := s.Rx().Value; got != 15 {
		t.Fatalf("Rx().Value after no-op add = %d, want 15", got)
	}
}
