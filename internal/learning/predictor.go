package learning

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// patternWeight is how much the mined-pattern signal contributes to the
// blended probability. Explicit mined patterns carry stronger evidential
// weight than the generic statistical prior, hence the 60/40 split.
const patternWeight = 0.6

// applyThreshold is the minimum prediction confidence at which a caller may
// act on the result. Below it the prediction is advisory only.
const applyThreshold = 0.5

type compiledPattern struct {
	re  *regexp.Regexp
	src domain.FeedbackPattern
}

// Predictor scores the false-positive risk of an IOC against one immutable
// model snapshot. Safe for concurrent use; retraining builds a new one.
type Predictor struct {
	model    *domain.LearningModel
	compiled []compiledPattern
}

func NewPredictor(model *domain.LearningModel) *Predictor {
	p := &Predictor{model: model}
	for _, fp := range model.Patterns {
		re, err := regexp.Compile(fp.Pattern)
		if err != nil {
			continue // never let one bad persisted pattern poison the model
		}
		p.compiled = append(p.compiled, compiledPattern{re: re, src: fp})
	}
	return p
}

// Predict combines the mined-pattern signal with the feature-weight linear
// model into a false-positive probability, a confidence in that
// probability, and a human-readable reasoning trace.
func (p *Predictor) Predict(ioc domain.IOC) domain.Prediction {
	var reasoning []string

	// Signal 1: confidence-weighted average effectiveness of matching
	// patterns, defaulting to 0.5 when nothing matches.
	value := strings.ToLower(ioc.Value)
	patternProb, avgEffectiveness := 0.5, 0.5
	var effSum, weighted float64
	matched := 0
	for _, cp := range p.compiled {
		if cp.src.IOCType != ioc.Type {
			continue
		}
		if cp.src.FeedbackType != domain.FeedbackFalsePositive &&
			cp.src.FeedbackType != domain.FeedbackConfidenceTooHigh {
			continue
		}
		if !cp.re.MatchString(value) {
			continue
		}
		matched++
		effSum += cp.src.Effectiveness
		weighted += cp.src.Effectiveness * cp.src.Effectiveness
	}
	if matched > 0 {
		patternProb = weighted / effSum
		avgEffectiveness = effSum / float64(matched)
		reasoning = append(reasoning, fmt.Sprintf(
			"%d mined false-positive pattern(s) match (avg effectiveness %.2f)",
			matched, avgEffectiveness))
	} else {
		reasoning = append(reasoning, "no mined pattern matches; neutral pattern signal")
	}

	// Signal 2: logistic transform of the feature-weight linear model.
	modelProb := p.featureScore(ioc, &reasoning)

	probability := patternWeight*patternProb + (1-patternWeight)*modelProb
	confidence := 0.5*avgEffectiveness + 0.5*p.model.Accuracy
	reasoning = append(reasoning, fmt.Sprintf(
		"blended %.0f/%.0f patterns/model: probability %.2f, confidence %.2f",
		patternWeight*100, (1-patternWeight)*100, probability, confidence))

	return domain.Prediction{
		Probability: probability,
		Confidence:  confidence,
		Reasoning:   reasoning,
	}
}

// featureScore computes sigmoid(w·x) over value length, structural
// complexity, context presence, and the per-type base prior.
func (p *Predictor) featureScore(ioc domain.IOC, reasoning *[]string) float64 {
	w := p.model.Weights

	lengthNorm := float64(len(ioc.Value)) / 64.0
	if lengthNorm > 1 {
		lengthNorm = 1
	}
	complexity := structuralComplexity(ioc.Value)
	hasContext := 0.0
	if strings.TrimSpace(ioc.Context) != "" {
		hasContext = 1.0
	}

	z := w.BaseScores[ioc.Type] +
		w.LengthWeight*lengthNorm +
		w.ComplexityWeight*complexity +
		w.ContextWeight*hasContext
	prob := 1.0 / (1.0 + math.Exp(-z))

	*reasoning = append(*reasoning, fmt.Sprintf(
		"feature model: base %.2f, length %.2f, complexity %.2f, context %.0f -> %.2f",
		w.BaseScores[ioc.Type], lengthNorm, complexity, hasContext, prob))
	return prob
}

// structuralComplexity measures character-class diversity on a 0-1 scale.
// Low-complexity values (plain words) look more like prose false matches.
func structuralComplexity(value string) float64 {
	var hasLower, hasUpper, hasDigit, hasPunct bool
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasPunct = true
		}
	}
	classes := 0
	for _, b := range []bool{hasLower, hasUpper, hasDigit, hasPunct} {
		if b {
			classes++
		}
	}
	return float64(classes) / 4.0
}

// AdjustConfidence applies a prediction to an existing 0-100 confidence
// score. Predictions below the apply threshold are advisory only and leave
// the score untouched. The multiplier shrinks aggressively above 0.7
// probability, moderately between 0.5 and 0.7, and not at all below 0.5.
func AdjustConfidence(score int, pred domain.Prediction) int {
	if pred.Confidence < applyThreshold {
		return score
	}
	factor := 1.0
	switch {
	case pred.Probability > 0.7:
		factor = 0.3
	case pred.Probability > 0.5:
		factor = 0.7
	}
	return int(float64(score) * factor)
}
