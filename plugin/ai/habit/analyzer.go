package habit

import (
	"sort"
)

// topNHours returns the n most frequent hours. Equal counts favour the
// smaller hour so the result never depends on map iteration order.
func topNHours(hourCounts map[int]int, n int) []int {
	type hourCount struct {
		hour  int
		count int
	}

	hcs := make([]hourCount, 0, len(hourCounts))
	for hour, count := range hourCounts {
		hcs = append(hcs, hourCount{hour, count})
	}

	sort.Slice(hcs, func(i, j int) bool {
		if hcs[i].count != hcs[j].count {
			return hcs[i].count > hcs[j].count
		}
		return hcs[i].hour < hcs[j].hour
	})

	result := make([]int, 0, n)
	for i := 0; i < n && i < len(hcs); i++ {
		result = append(result, hcs[i].hour)
	}
	return result
}

// hourToPeriod buckets a (possibly fractional) hour: <12 morning, <17 afternoon, else evening.
func hourToPeriod(hour float64) Period {
	switch {
	case hour < 12:
		return PeriodMorning
	case hour < 17:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

func meanHour(hours []int) float64 {
	if len(hours) == 0 {
		return 0
	}
	sum := 0
	for _, h := range hours {
		sum += h
	}
	return float64(sum) / float64(len(hours))
}
