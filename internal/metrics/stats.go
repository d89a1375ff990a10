package metrics

import "sort"

// Summary is the plain fold of a set of values. All fields except Count are
// meaningless when Count is zero.
type Summary struct {
	Count  int
	Sum    float64
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// Reduce folds values into a Summary. It never fails; empty input gives Count 0.
func Reduce(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Sum:    sum,
		Mean:   sum / float64(n),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// HoursStats is the statistics block of an hour-duration metric.
type HoursStats struct {
	Sum      *float64 `json:"sum" jsonschema:"nullable"`
	Mean     *float64 `json:"mean" jsonschema:"nullable"`
	Median   *float64 `json:"median" jsonschema:"nullable"`
	Earliest *float64 `json:"earliest" jsonschema:"nullable"`
	Latest   *float64 `json:"latest" jsonschema:"nullable"`
	Count    int      `json:"count"`
}

// ReduceHours builds an HoursStats block rounded to two decimals.
func ReduceHours(values []float64) HoursStats {
	s := Reduce(values)
	if s.Count == 0 {
		return HoursStats{}
	}
	return HoursStats{
		Sum:      floatPtr(round2(s.Sum)),
		Mean:     floatPtr(round2(s.Mean)),
		Median:   floatPtr(round2(s.Median)),
		Earliest: floatPtr(round2(s.Min)),
		Latest:   floatPtr(round2(s.Max)),
		Count:    s.Count,
	}
}

// ClockStats is the statistics block of a time-of-day metric. Clock times
// have no meaningful sum.
type ClockStats struct {
	Mean     *ClockTime `json:"mean" jsonschema:"nullable"`
	Median   *ClockTime `json:"median" jsonschema:"nullable"`
	Earliest *ClockTime `json:"earliest" jsonschema:"nullable"`
	Latest   *ClockTime `json:"latest" jsonschema:"nullable"`
	Count    int        `json:"count"`
}

// ReduceClock reduces clock times as minutes since midnight, rounding mean
// and median to the nearest minute.
func ReduceClock(values []ClockTime) ClockStats {
	mins := make([]float64, len(values))
	for i, v := range values {
		mins[i] = float64(v.Minutes())
	}
	s := Reduce(mins)
	if s.Count == 0 {
		return ClockStats{}
	}
	return ClockStats{
		Mean:     clockPtr(clockFromMinutes(s.Mean)),
		Median:   clockPtr(clockFromMinutes(s.Median)),
		Earliest: clockPtr(clockFromMinutes(s.Min)),
		Latest:   clockPtr(clockFromMinutes(s.Max)),
		Count:    s.Count,
	}
}

func floatPtr(v float64) *float64 { return &v }
