package weather

import (
	"fmt"
	"strconv"
)

// Reading is the normalized current-weather record returned by a provider.
type Reading struct {
	Place        string
	ProviderName string
	TemperatureC float64
	HumidityPct  float64
	PressureHpa  float64
	Condition    string
}

// Summary renders the reading in the multi-line form shown to users and fed
// to commentary generation.
func (r Reading) Summary() string {
	return fmt.Sprintf(
		"Temperature: %s°C\nHumidity: %s%%\nPressure: %s hPa\nCondition: %s",
		formatNumber(r.TemperatureC),
		formatNumber(r.HumidityPct),
		formatNumber(r.PressureHpa),
		r.Condition,
	)
}

// formatNumber prints the shortest decimal that round-trips, so 15 stays "15"
// and 15.3 stays "15.3".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
