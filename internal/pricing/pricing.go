// Package pricing resolves a vehicle size to a tow-truck category and
// quotes the round-trip cost. All money is integer cents.
package pricing

import (
	"math"

	"github.com/hookline/tow-bookings/internal/domain"
)

// RoundTripFactor doubles the per-km charge: the truck drives out and back.
const RoundTripFactor = 2

type Rate struct {
	Category   domain.TruckCategory
	BaseCents  int64
	PerKmCents int64
}

type Quote struct {
	VehicleSize domain.VehicleSize   `json:"vehicle_size"`
	Category    domain.TruckCategory `json:"truck_category"`
	DistanceKm  float64              `json:"distance_km"`
	BaseCents   int64                `json:"base_cents"`
	PerKmCents  int64                `json:"per_km_cents"`
	TotalCents  int64                `json:"total_cents"`
}

var rateTable = map[domain.VehicleSize]Rate{
	domain.SizeSmall:      {Category: domain.TruckLight, BaseCents: 4000, PerKmCents: 150},
	domain.SizeMedium:     {Category: domain.TruckStandard, BaseCents: 5000, PerKmCents: 200},
	domain.SizeLarge:      {Category: domain.TruckHeavy, BaseCents: 7500, PerKmCents: 300},
	domain.SizeExtraLarge: {Category: domain.TruckFlatbed, BaseCents: 11000, PerKmCents: 400},
}

// Resolve maps a vehicle size to its rate. An unmapped size is an operator
// configuration fault and never falls back to a default category.
func Resolve(size domain.VehicleSize) (Rate, error) {
	rate, ok := rateTable[size]
	if !ok {
		return Rate{}, domain.ConfigurationError{
			Setting: "rate_table",
			Msg:     "no truck category mapped for vehicle size " + string(size),
		}
	}
	return rate, nil
}

// Estimate quotes the total for towing a vehicle of the given size over
// distanceKm: base + distance * perKm * RoundTripFactor, rounded to the
// nearest cent.
func Estimate(size domain.VehicleSize, distanceKm float64) (Quote, error) {
	if distanceKm < 0 {
		return Quote{}, domain.ValidationError{Field: "distance_km", Msg: "distance must not be negative"}
	}

	rate, err := Resolve(size)
	if err != nil {
		return Quote{}, err
	}

	variable := int64(math.Round(distanceKm * float64(rate.PerKmCents) * RoundTripFactor))

	return Quote{
		VehicleSize: size,
		Category:    rate.Category,
		DistanceKm:  distanceKm,
		BaseCents:   rate.BaseCents,
		PerKmCents:  rate.PerKmCents,
		TotalCents:  rate.BaseCents + variable,
	}, nil
}
