package series

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the values currently held by a series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes count, mean, sample standard deviation and range. An
// empty input yields the zero Summary; a single value has zero deviation.
func Summarize(values []int64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	x := make([]float64, len(values))
	for i, v := range values {
		x[i] = float64(v)
	}
	sum := Summary{
		Count: len(x),
		Min:   floats.Min(x),
		Max:   floats.Max(x),
	}
	if len(x) == 1 {
		sum.Mean = x[0]
		return sum
	}
	sum.Mean, sum.StdDev = stat.MeanStdDev(x, nil)
	return sum
}
