package fees

import "testing"

func TestFeeCents(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		amountCents int64
		want        int64
	}{
		{"card $1000", MethodCard, 100000, 2930},
		{"card $100", MethodCard, 10000, 320},
		{"card $1", MethodCard, 100, 33},
		{"card rounds half up", MethodCard, 1915, 86}, // 1915*0.029=55.535 -> 56 + 30
		{"apple pay charged as card", MethodApplePay, 100000, 2930},
		{"google pay charged as card", MethodGooglePay, 100000, 2930},
		{"ach $1000 hits cap", MethodACH, 100000, 500},
		{"ach $625 exactly at cap", MethodACH, 62500, 500},
		{"ach $100 under cap", MethodACH, 10000, 80},
		{"ach $50", MethodACH, 5000, 40},
		{"unknown method", "check", 100000, 0},
		{"zero amount", MethodCard, 0, 0},
		{"negative amount", MethodACH, -500, 0},
	}

	for _, tc := range cases {
		got := FeeCents(tc.method, tc.amountCents)
		if got != tc.want {
			t.Fatalf("%s: FeeCents(%q, %d) = %d, want %d", tc.name, tc.method, tc.amountCents, got, tc.want)
		}
	}
}

func TestTotalCents(t *testing.T) {
	if got := TotalCents(MethodCard, 100000); got != 102930 {
		t.Fatalf("TotalCents(card, 100000) = %d, want 102930", got)
	}
	if got := TotalCents(MethodACH, 100000); got != 100500 {
		t.Fatalf("TotalCents(ach, 100000) = %d, want 100500", got)
	}
}
