package money

import "testing"

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in       float64
		decimals int
		want     float64
	}{
		{2.375, 2, 2.38},
		{2.664, 2, 2.66},
		{-2.375, 2, -2.38},
		{0.005, 2, 0.01},
		{103.95, 2, 103.95},
		{1234.4, 0, 1234},
		{1234.5, 0, 1235},
	}
	for _, tc := range cases {
		got := Round(tc.in, tc.decimals)
		if got != tc.want {
			t.Fatalf("Round(%v, %d) = %v, want %v", tc.in, tc.decimals, got, tc.want)
		}
	}
}

func TestDecimalsPerCurrency(t *testing.T) {
	if got := Decimals("JPY"); got != 0 {
		t.Fatalf("JPY decimals = %d, want 0", got)
	}
	if got := Decimals("KRW"); got != 0 {
		t.Fatalf("KRW decimals = %d, want 0", got)
	}
	if got := Decimals("IDR"); got != 2 {
		t.Fatalf("IDR decimals = %d, want 2", got)
	}
	if got := Decimals(""); got != 2 {
		t.Fatalf("empty currency decimals = %d, want 2", got)
	}
}

func TestSettledTolerance(t *testing.T) {
	if !Settled(0) {
		t.Fatal("zero balance must settle")
	}
	if !Settled(0.01) {
		t.Fatal("balance at tolerance must settle")
	}
	if Settled(0.02) {
		t.Fatal("balance above tolerance must not settle")
	}
	if !Settled(-5) {
		t.Fatal("overpaid balance must settle")
	}
}

func TestChange(t *testing.T) {
	if got := Change(-2.97); got != 2.97 {
		t.Fatalf("Change(-2.97) = %v, want 2.97", got)
	}
	if got := Change(0.5); got != 0 {
		t.Fatalf("Change(0.5) = %v, want 0", got)
	}
	if got := Change(0); got != 0 {
		t.Fatalf("Change(0) = %v, want 0", got)
	}
}

func TestApplyPercent(t *testing.T) {
	if got := ApplyPercent(200, 10); got != 20 {
		t.Fatalf("ApplyPercent(200, 10) = %v, want 20", got)
	}
	if got := ApplyPercent(90, 0); got != 0 {
		t.Fatalf("ApplyPercent(90, 0) = %v, want 0", got)
	}
}
