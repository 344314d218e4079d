package ports

// Notifier defines the interface for pushing review-worthy events to
// external systems.
type Notifier interface {
	// NotifyFeedbackConflict fires when a feedback submission disagrees
	// with existing consensus strongly enough to need human review.
	NotifyFeedbackConflict(alert FeedbackConflict) error

	// NotifyHighFalsePositiveRisk fires when prediction marks an IOC as a
	// probable false positive with high confidence.
	NotifyHighFalsePositiveRisk(alert FalsePositiveRisk) error
}

type FeedbackConflict struct {
	FeedbackID      string
	IOCValue        string
	IOCType         string
	FeedbackType    string
	ValidationScore float64
	UserID          string
}

type FalsePositiveRisk struct {
	IOCValue    string
	IOCType     string
	Probability float64
	Confidence  float64
	Reasoning   []string
}
