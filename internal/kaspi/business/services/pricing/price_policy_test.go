package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"kaspimarket_api/internal/kaspi/business/services/pricing"
)

func TestRetail_TargetDivisor(t *testing.T) {
	policy, err := pricing.NewPricePolicy(0.3, 0.45)
	if err != nil {
		t.Fatalf("NewPricePolicy: %v", err)
	}

	// 1000 / 0.3 = 3333.33 → 3333, выше пола 1000 / 0.45 = 2222.
	if got := policy.Retail(1000); got != 3333 {
		t.Errorf("Retail(1000) = %d, want 3333", got)
	}
}

func TestRetail_NeverBelowFloor(t *testing.T) {
	// Целевой делитель больше минимального: целевая цена ниже пола,
	// политика поднимает её до минимально допустимой.
	policy, err := pricing.NewPricePolicy(0.9, 0.5)
	if err != nil {
		t.Fatalf("NewPricePolicy: %v", err)
	}

	got := policy.Retail(1000)
	floor := policy.Floor(1000)
	if got < floor {
		t.Errorf("Retail(1000) = %d is below floor %d", got, floor)
	}
	if got != 2000 {
		t.Errorf("Retail(1000) = %d, want 2000", got)
	}
}

func TestRetail_WholeTenge(t *testing.T) {
	policy, err := pricing.NewPricePolicy(0.3, 0.45)
	if err != nil {
		t.Fatalf("NewPricePolicy: %v", err)
	}

	// 100 / 0.3 = 333.33 → округление до целого.
	if got := policy.Retail(100); got != 333 {
		t.Errorf("Retail(100) = %d, want 333", got)
	}
	// 200 / 0.3 = 666.67 → вверх.
	if got := policy.Retail(200); got != 667 {
		t.Errorf("Retail(200) = %d, want 667", got)
	}
}

func TestRetailPrice(t *testing.T) {
	tests := []struct {
		cost    int64
		divisor float64
		want    int64
	}{
		{1000, 0.5, 2000},
		{1000, 0.45, 2222},
		{999, 1.0, 999},
		{0, 0.3, 0},
	}
	for _, tt := range tests {
		got := pricing.RetailPrice(tt.cost, decimal.NewFromFloat(tt.divisor))
		if got != tt.want {
			t.Errorf("RetailPrice(%d, %v) = %d, want %d", tt.cost, tt.divisor, got, tt.want)
		}
	}
}

func TestNewPricePolicy_RejectsBadDivisors(t *testing.T) {
	cases := []struct {
		name        string
		target, min float64
	}{
		{"zero target", 0, 0.45},
		{"negative target", -0.3, 0.45},
		{"target above one", 1.5, 0.45},
		{"zero min", 0.3, 0},
		{"min above one", 0.3, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := pricing.NewPricePolicy(c.target, c.min); err == nil {
				t.Errorf("NewPricePolicy(%v, %v) expected error, got nil", c.target, c.min)
			}
		})
	}
}
