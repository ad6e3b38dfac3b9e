package domain

import "math"

// roundTo redondea a n decimales. Todo el reporting redondea al emitir:
// importes a 4, porcentajes a 2, slope y p-value a 6.
func roundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
