package pricing_test

import (
	"testing"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/pricing"
)

func TestEstimate_RateTable(t *testing.T) {
	tests := []struct {
		name       string
		size       domain.VehicleSize
		distanceKm float64
		category   domain.TruckCategory
		totalCents int64
	}{
		{"small base only", domain.SizeSmall, 0, domain.TruckLight, 4000},
		{"small 5km", domain.SizeSmall, 5, domain.TruckLight, 4000 + 5*150*2},
		{"medium 10km", domain.SizeMedium, 10, domain.TruckStandard, 9000},
		{"large 8km", domain.SizeLarge, 8, domain.TruckHeavy, 7500 + 8*300*2},
		{"xl 12km", domain.SizeExtraLarge, 12, domain.TruckFlatbed, 11000 + 12*400*2},
		{"fractional distance rounds", domain.SizeMedium, 2.51, domain.TruckStandard, 5000 + 1004},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := pricing.Estimate(tt.size, tt.distanceKm)
			if err != nil {
				t.Fatalf("Estimate(%s, %v): %v", tt.size, tt.distanceKm, err)
			}
			if quote.Category != tt.category {
				t.Fatalf("expected category %s, got %s", tt.category, quote.Category)
			}
			if quote.TotalCents != tt.totalCents {
				t.Fatalf("expected total %d cents, got %d", tt.totalCents, quote.TotalCents)
			}
		})
	}
}

func TestEstimate_MediumTenKmIsNinetyDollars(t *testing.T) {
	quote, err := pricing.Estimate(domain.SizeMedium, 10)
	if err != nil {
		t.Fatal(err)
	}

	// 5000 base + 10km * 200/km * 2 (round trip) = 9000 cents
	if quote.TotalCents != 9000 {
		t.Fatalf("expected 9000 cents, got %d", quote.TotalCents)
	}
	if quote.BaseCents != 5000 || quote.PerKmCents != 200 {
		t.Fatalf("unexpected rate: base=%d perKm=%d", quote.BaseCents, quote.PerKmCents)
	}
}

func TestEstimate_CostNonDecreasingInDistance(t *testing.T) {
	sizes := []domain.VehicleSize{
		domain.SizeSmall, domain.SizeMedium, domain.SizeLarge, domain.SizeExtraLarge,
	}
	distances := []float64{0, 0.5, 1, 2.5, 10, 42.3, 120, 999}

	for _, size := range sizes {
		prev := int64(-1)
		for _, d := range distances {
			quote, err := pricing.Estimate(size, d)
			if err != nil {
				t.Fatalf("Estimate(%s, %v): %v", size, d, err)
			}
			if quote.TotalCents < prev {
				t.Fatalf("%s: cost decreased from %d to %d at distance %v", size, prev, quote.TotalCents, d)
			}
			prev = quote.TotalCents
		}
	}
}

func TestEstimate_UnmappedSizeIsConfigurationError(t *testing.T) {
	_, err := pricing.Estimate(domain.VehicleSize("oversize"), 10)
	if err == nil {
		t.Fatal("expected error for unmapped vehicle size")
	}
	if !domain.IsConfiguration(err) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestEstimate_NegativeDistanceIsValidationError(t *testing.T) {
	_, err := pricing.Estimate(domain.SizeMedium, -1)
	if err == nil {
		t.Fatal("expected error for negative distance")
	}
	if !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestResolve_EverySizeHasACategory(t *testing.T) {
	want := map[domain.VehicleSize]domain.TruckCategory{
		domain.SizeSmall:      domain.TruckLight,
		domain.SizeMedium:     domain.TruckStandard,
		domain.SizeLarge:      domain.TruckHeavy,
		domain.SizeExtraLarge: domain.TruckFlatbed,
	}

	for size, category := range want {
		rate, err := pricing.Resolve(size)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", size, err)
		}
		if rate.Category != category {
			t.Fatalf("Resolve(%s): expected %s, got %s", size, category, rate.Category)
		}
	}
}
