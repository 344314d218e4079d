package learning

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// minFragmentLen is the shortest substring worth turning into a pattern;
// anything shorter matches half of all indicator values.
const minFragmentLen = 3

// maxPatternExamples bounds how many example values are stored per pattern.
const maxPatternExamples = 10

type groupKey struct {
	typ domain.IOCType
	fb  domain.FeedbackType
}

// MinePatterns groups validated feedback by (IOC type, feedback type) and,
// for every group of at least three examples, searches for the longest
// substring common to all the reported values. A shared fragment becomes a
// reusable pattern whose initial effectiveness grows with group size: a
// fragment recurring across many independent analyst reports is less likely
// to be coincidental.
func MinePatterns(feedback []*domain.UserFeedback) []domain.FeedbackPattern {
	groups := make(map[groupKey][]string)
	for _, fb := range feedback {
		if !fb.Validated || fb.IOCValue == "" {
			continue
		}
		key := groupKey{typ: fb.IOCType, fb: fb.Type}
		groups[key] = append(groups[key], strings.ToLower(fb.IOCValue))
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].typ != keys[j].typ {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].fb < keys[j].fb
	})

	now := time.Now().UTC()
	var patterns []domain.FeedbackPattern
	for _, key := range keys {
		values := groups[key]
		if len(values) < 3 {
			continue
		}
		fragment := longestCommonSubstring(values)
		if len(fragment) < minFragmentLen {
			continue
		}
		examples := values
		if len(examples) > maxPatternExamples {
			examples = examples[:maxPatternExamples]
		}
		patterns = append(patterns, domain.FeedbackPattern{
			ID:            uuid.NewString(),
			IOCType:       key.typ,
			FeedbackType:  key.fb,
			Pattern:       ".*" + regexp.QuoteMeta(fragment) + ".*",
			Effectiveness: seedEffectiveness(len(values)),
			Examples:      examples,
			MinedAt:       now,
		})
	}
	return patterns
}

// seedEffectiveness maps group size onto initial trust, capped at 0.95.
func seedEffectiveness(n int) float64 {
	eff := 0.5 + 0.05*float64(n)
	if eff > 0.95 {
		eff = 0.95
	}
	return eff
}

// longestCommonSubstring returns the longest fragment present in every
// value, or "" when the values share nothing. Search is anchored on the
// shortest value and tries longer fragments first.
func longestCommonSubstring(values []string) string {
	if len(values) == 0 {
		return ""
	}
	shortest := values[0]
	for _, v := range values[1:] {
		if len(v) < len(shortest) {
			shortest = v
		}
	}
	for size := len(shortest); size >= minFragmentLen; size-- {
		for start := 0; start+size <= len(shortest); start++ {
			frag := shortest[start : start+size]
			if containedInAll(frag, values) {
				return frag
			}
		}
	}
	return ""
}

func containedInAll(frag string, values []string) bool {
	for _, v := range values {
		if !strings.Contains(v, frag) {
			return false
		}
	}
	return true
}
