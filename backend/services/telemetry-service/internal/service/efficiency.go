package service

import (
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

const (
	energyPlaces = 2
	ratioPlaces  = 4
)

// ComputeEfficiency derives the summary metrics from the window boundary counters.
// Counters are used as reported; a reset inside the window yields a negative delta.
func ComputeEfficiency(vehicleStart, vehicleEnd *models.VehicleSample, meterStart, meterEnd *models.MeterSample, avgTemp float64) models.EfficiencyMetrics {
	delivered := vehicleEnd.KWhDeliveredDC - vehicleStart.KWhDeliveredDC
	consumed := meterEnd.KWhConsumedAC - meterStart.KWhConsumedAC

	var ratio float64
	if consumed > 0 {
		ratio = delivered / consumed
	}

	return models.EfficiencyMetrics{
		TotalEnergyConsumedAC:  Round(consumed, energyPlaces),
		TotalEnergyDeliveredDC: Round(delivered, energyPlaces),
		EfficiencyRatio:        Round(ratio, ratioPlaces),
		AvgBatteryTemp:         Round(avgTemp, energyPlaces),
	}
}

// Round rounds half away from zero at the given number of decimal places, operating
// on the shortest decimal representation of f so that 0.80005 rounds to 0.8001.
func Round(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	d, _, err := apd.NewFromString(strconv.FormatFloat(f, 'g', -1, 64))
	if err != nil {
		return f
	}

	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfUp

	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, -places); err != nil {
		return f
	}
	rounded, err := out.Float64()
	if err != nil {
		return f
	}
	if rounded == 0 {
		// drop the sign of negative zero
		return 0
	}
	return rounded
}
