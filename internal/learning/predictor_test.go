package learning

import (
	"testing"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

func modelWithPattern(eff float64) *domain.LearningModel {
	m := defaultModel()
	m.Accuracy = 0.9
	m.Patterns = []domain.FeedbackPattern{{
		IOCType:       domain.Filename,
		FeedbackType:  domain.FeedbackFalsePositive,
		Pattern:       `.*update_.*`,
		Effectiveness: eff,
	}}
	return m
}

func TestPredictPatternMatchRaisesProbability(t *testing.T) {
	p := NewPredictor(modelWithPattern(0.9))

	hit := p.Predict(domain.IOC{Type: domain.Filename, Value: "update_check.exe"})
	miss := p.Predict(domain.IOC{Type: domain.Filename, Value: "mimikatz.exe"})

	if hit.Probability <= miss.Probability {
		t.Errorf("pattern match should raise probability: hit %.2f, miss %.2f",
			hit.Probability, miss.Probability)
	}
	if len(hit.Reasoning) == 0 {
		t.Error("expected a reasoning trace")
	}
}

func TestPredictPatternScopedToType(t *testing.T) {
	p := NewPredictor(modelWithPattern(0.9))

	// Same value text, different type: the filename pattern must not fire.
	asFilename := p.Predict(domain.IOC{Type: domain.Filename, Value: "update_check.exe"})
	asProcess := p.Predict(domain.IOC{Type: domain.ProcessName, Value: "update_check.exe"})
	if asProcess.Probability >= asFilename.Probability {
		t.Errorf("pattern should be scoped to its IOC type: filename %.2f, process %.2f",
			asFilename.Probability, asProcess.Probability)
	}
}

func TestPredictNoPatternsIsNeutralSignal(t *testing.T) {
	m := defaultModel()
	m.Accuracy = 0.5
	p := NewPredictor(m)
	pred := p.Predict(domain.IOC{Type: domain.SHA256, Value: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"})

	// Pattern signal defaults to 0.5; a strongly hash-negative feature
	// model pulls the blend below neutral.
	if pred.Probability >= 0.5 {
		t.Errorf("hash with no patterns should score below neutral, got %.2f", pred.Probability)
	}
	if pred.Confidence != 0.5 {
		t.Errorf("confidence = %.2f, want 0.5 from neutral effectiveness and accuracy", pred.Confidence)
	}
}

func TestPredictConfidenceTracksModelAccuracy(t *testing.T) {
	low := defaultModel()
	low.Accuracy = 0.5
	high := defaultModel()
	high.Accuracy = 0.95

	ioc := domain.IOC{Type: domain.Domain, Value: "example.com"}
	if NewPredictor(high).Predict(ioc).Confidence <= NewPredictor(low).Predict(ioc).Confidence {
		t.Error("higher model accuracy should produce higher prediction confidence")
	}
}

func TestNewPredictorSkipsInvalidPatterns(t *testing.T) {
	m := defaultModel()
	m.Patterns = []domain.FeedbackPattern{
		{IOCType: domain.Filename, FeedbackType: domain.FeedbackFalsePositive, Pattern: `([`},
		{IOCType: domain.Filename, FeedbackType: domain.FeedbackFalsePositive, Pattern: `.*ok.*`, Effectiveness: 0.7},
	}
	p := NewPredictor(m)
	if len(p.compiled) != 1 {
		t.Fatalf("expected 1 compiled pattern, got %d", len(p.compiled))
	}
}

func TestStructuralComplexity(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"abc", 0.25},
		{"Abc", 0.5},
		{"Abc1", 0.75},
		{"Abc1!", 1.0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := structuralComplexity(tt.value); got != tt.want {
			t.Errorf("structuralComplexity(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestAdjustConfidence(t *testing.T) {
	tests := []struct {
		name string
		pred domain.Prediction
		in   int
		want int
	}{
		{"low confidence is advisory", domain.Prediction{Probability: 0.9, Confidence: 0.4}, 90, 90},
		{"high probability shrinks hard", domain.Prediction{Probability: 0.8, Confidence: 0.8}, 90, 27},
		{"moderate probability shrinks", domain.Prediction{Probability: 0.6, Confidence: 0.8}, 90, 63},
		{"low probability untouched", domain.Prediction{Probability: 0.3, Confidence: 0.9}, 90, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdjustConfidence(tt.in, tt.pred); got != tt.want {
				t.Errorf("AdjustConfidence(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
