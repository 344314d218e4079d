package job

import (
	"sort"
	"time"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

var percentileLevels = map[string]float64{
	"p50": 0.50,
	"p75": 0.75,
	"p90": 0.90,
	"p95": 0.95,
	"p99": 0.99,
}

// buildResults aggregates the per-item outcomes into the result payload:
// type and confidence breakdowns, latency percentiles, and the quality
// scores for the upload itself.
func buildResults(items []domain.ProcessedIOC, jobErrors []domain.JobError) domain.JobResults {
	summary := domain.JobSummary{
		ByType:       make(map[domain.IOCType]int),
		ByConfidence: make(map[domain.Confidence]int),
	}
	var (
		durations []time.Duration
		totalTime time.Duration
		processed int
	)
	var successful, skipped, duplicates, failed int

	for _, it := range items {
		switch it.Status {
		case domain.ItemSuccess:
			successful++
		case domain.ItemSkipped:
			skipped++
		case domain.ItemDuplicate:
			duplicates++
			summary.Duplicates++
		case domain.ItemFailed:
			failed++
		}
		if it.Status != domain.ItemDuplicate {
			processed++
			durations = append(durations, it.Duration)
			totalTime += it.Duration
		}
		if it.IOC != nil {
			summary.ByType[it.IOC.Type]++
			summary.ByConfidence[it.IOC.Confidence]++
		}
		if it.Prediction != nil && it.Prediction.Probability > 0.5 {
			summary.PredictedFalsePositives++
		}
	}
	if processed > 0 {
		summary.AvgProcessingTime = totalTime / time.Duration(processed)
	}

	stats := domain.JobStatistics{
		TopTypes:    topTypes(summary.ByType, 10),
		ErrorCounts: make(map[domain.ErrorType]int),
		Percentiles: percentiles(durations),
	}
	for _, je := range jobErrors {
		stats.ErrorCounts[je.Type]++
	}

	return domain.JobResults{
		Items:      items,
		Summary:    summary,
		Statistics: stats,
		Quality:    qualityMetrics(len(items), successful, skipped, duplicates),
	}
}

// topTypes ranks the extracted types by count, ties broken alphabetically
// so the ranking is deterministic.
func topTypes(byType map[domain.IOCType]int, n int) []domain.TypeFrequency {
	out := make([]domain.TypeFrequency, 0, len(byType))
	for typ, count := range byType {
		out = append(out, domain.TypeFrequency{Type: typ, Count: count})
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Count != out[k].Count {
			return out[i].Count > out[k].Count
		}
		return out[i].Type < out[k].Type
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// percentiles computes the latency distribution using the nearest-rank
// method. An empty input yields an empty map, not zeros.
func percentiles(durations []time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(percentileLevels))
	if len(durations) == 0 {
		return out
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i] < sorted[k] })

	for name, level := range percentileLevels {
		rank := int(level*float64(len(sorted))+0.5) - 1
		if rank < 0 {
			rank = 0
		}
		if rank >= len(sorted) {
			rank = len(sorted) - 1
		}
		out[name] = sorted[rank]
	}
	return out
}

// qualityMetrics scores the upload. Data quality is the plain success
// ratio; completeness treats intentional skips as handled input;
// consistency is penalized by the duplicate ratio.
func qualityMetrics(total, successful, skipped, duplicates int) domain.QualityMetrics {
	if total == 0 {
		return domain.QualityMetrics{}
	}
	t := float64(total)
	return domain.QualityMetrics{
		DataQualityScore:  float64(successful) / t * 100,
		CompletenessScore: float64(successful+skipped+duplicates) / t * 100,
		ConsistencyScore:  (1 - float64(duplicates)/t) * 100,
	}
}
