package domain

import "time"

// FeedbackType is the analyst's assertion about one IOC.
type FeedbackType string

const (
	FeedbackFalsePositive     FeedbackType = "false_positive"
	FeedbackTruePositive      FeedbackType = "true_positive"
	FeedbackWrongType         FeedbackType = "incorrect_classification"
	FeedbackConfidenceTooHigh FeedbackType = "confidence_too_high"
	FeedbackConfidenceTooLow  FeedbackType = "confidence_too_low"
)

// UserFeedback is one analyst assertion. Created on submission; Validated
// and ValidationScore are mutated asynchronously by the consensus check.
// Feedback is never deleted, only reviewed.
type UserFeedback struct {
	ID              string       `json:"id"`
	IOCID           string       `json:"ioc_id"`
	IOCType         IOCType      `json:"ioc_type"`
	IOCValue        string       `json:"ioc_value"`
	Type            FeedbackType `json:"type"`
	Reasoning       string       `json:"reasoning,omitempty"`
	Evidence        string       `json:"evidence,omitempty"`
	UserID          string       `json:"user_id"`
	UserRole        string       `json:"user_role,omitempty"`
	Validated       bool         `json:"validated"`
	ValidationScore float64      `json:"validation_score"` // agreement with prior consensus, 0-1
	CreatedAt       time.Time    `json:"created_at"`
}

// FeedbackPattern is a mined regular-expression fragment tied to one
// (IOCType, FeedbackType) pair. Patterns are created only during retraining
// and superseded, never edited, by later mining runs.
type FeedbackPattern struct {
	ID            string       `json:"id"`
	IOCType       IOCType      `json:"ioc_type"`
	FeedbackType  FeedbackType `json:"feedback_type"`
	Pattern       string       `json:"pattern"`
	Effectiveness float64      `json:"effectiveness"` // how often it predicts correctly
	Examples      []string     `json:"examples,omitempty"`
	MinedAt       time.Time    `json:"mined_at"`
}

// FeatureWeights are the linear-model parameters of a trained snapshot.
type FeatureWeights struct {
	BaseScores       map[IOCType]float64 `json:"base_scores"`
	LengthWeight     float64             `json:"length_weight"`
	ComplexityWeight float64             `json:"complexity_weight"`
	ContextWeight    float64             `json:"context_weight"`
	RoleWeights      map[string]float64  `json:"role_weights,omitempty"`
}

// LearningModel is a versioned training snapshot. It is replaced wholesale
// on retraining, never partially mutated.
type LearningModel struct {
	Version         int               `json:"version"`
	TrainedAt       time.Time         `json:"trained_at"`
	Accuracy        float64           `json:"accuracy"`
	Precision       float64           `json:"precision"`
	Recall          float64           `json:"recall"`
	F1Score         float64           `json:"f1_score"`
	TrainingSamples int               `json:"training_samples"`
	Patterns        []FeedbackPattern `json:"patterns"`
	Weights         FeatureWeights    `json:"weights"`
}

// Prediction is the advisory false-positive assessment for one IOC.
// Callers must not apply a prediction whose Confidence is below 0.5.
type Prediction struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	Reasoning   []string `json:"reasoning"`
}
