// Package learning implements the adaptive false-positive engine: analyst
// feedback ingestion with consensus validation, substring pattern mining
// over recurring feedback, and probabilistic confidence adjustment.
package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/core/ports"
	"github.com/hive-corporation/harrier/internal/metrics"
)

var ErrInvalidFeedback = errors.New("invalid feedback")

// Config controls consensus thresholds and the retraining trigger.
type Config struct {
	// AutoValidateScore is the consensus agreement at or above which new
	// feedback is validated without review.
	AutoValidateScore float64
	// ConflictScore is the agreement below which a conflict alert fires.
	ConflictScore float64
	// RetrainThreshold is how many newly validated items accumulate
	// before retraining runs.
	RetrainThreshold int
	// MinTotalFeedback is the minimum validated corpus size for any
	// training at all.
	MinTotalFeedback int
}

func DefaultLearningConfig() Config {
	return Config{
		AutoValidateScore: 0.8,
		ConflictScore:     0.3,
		RetrainThreshold:  50,
		MinTotalFeedback:  20,
	}
}

// Service owns the feedback corpus and the active model. All state lives
// behind the mutex; the repositories only see save-on-mutation writes.
type Service struct {
	cfg      Config
	repo     ports.FeedbackRepository
	models   ports.ModelRepository
	notifier ports.Notifier
	logger   *zap.SugaredLogger

	mu                 sync.RWMutex
	feedback           []*domain.UserFeedback
	byIOC              map[string][]*domain.UserFeedback
	model              *domain.LearningModel
	predictor          *Predictor
	validatedUntrained int
}

// NewService loads the persisted feedback corpus and the latest model
// snapshot. With no stored model it starts from the untrained default.
func NewService(ctx context.Context, repo ports.FeedbackRepository, models ports.ModelRepository, notifier ports.Notifier, cfg Config, logger *zap.SugaredLogger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{
		cfg:      cfg,
		repo:     repo,
		models:   models,
		notifier: notifier,
		logger:   logger,
		byIOC:    make(map[string][]*domain.UserFeedback),
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback corpus: %w", err)
	}
	for _, fb := range all {
		key := consensusKey(fb)
		s.feedback = append(s.feedback, fb)
		s.byIOC[key] = append(s.byIOC[key], fb)
	}

	model, err := models.LatestModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning model: %w", err)
	}
	if model == nil {
		model = defaultModel()
	}
	s.model = model
	s.predictor = NewPredictor(model)
	metrics.SetModelVersion(model.Version)
	s.logger.Infow("learning service initialized",
		"feedback_items", len(s.feedback), "model_version", model.Version)
	return s, nil
}

// consensusKey groups feedback targeting the same indicator. Feedback may
// name its target by stored id or by bare value; value-only feedback keys
// on (type, lowercased value) so unrelated indicators never pool.
func consensusKey(fb *domain.UserFeedback) string {
	if fb.IOCID != "" {
		return "id:" + fb.IOCID
	}
	return "value:" + string(fb.IOCType) + ":" + strings.ToLower(fb.IOCValue)
}

// compatibleFeedback maps feedback types that express the same direction
// of disagreement, e.g. false_positive and confidence_too_high.
func compatibleFeedback(a, b domain.FeedbackType) bool {
	if a == b {
		return true
	}
	pair := func(x, y domain.FeedbackType) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(domain.FeedbackFalsePositive, domain.FeedbackConfidenceTooHigh) ||
		pair(domain.FeedbackTruePositive, domain.FeedbackConfidenceTooLow)
}

// SubmitFeedback stores one analyst assertion, synchronously computing its
// consensus validation score against already-validated feedback for the
// same IOC. It never blocks on retraining.
func (s *Service) SubmitFeedback(ctx context.Context, fb *domain.UserFeedback) (string, error) {
	if fb == nil || fb.Type == "" || (fb.IOCID == "" && fb.IOCValue == "") {
		return "", fmt.Errorf("%w: type and target IOC are required", ErrInvalidFeedback)
	}
	fb.ID = uuid.NewString()
	fb.CreatedAt = time.Now().UTC()

	key := consensusKey(fb)
	s.mu.Lock()
	prior := s.byIOC[key]
	validated := 0
	agreeing := 0
	for _, p := range prior {
		if !p.Validated {
			continue
		}
		validated++
		if compatibleFeedback(p.Type, fb.Type) {
			agreeing++
		}
	}

	if validated == 0 {
		// No evidence either way.
		fb.ValidationScore = 0.5
		fb.Validated = false
	} else {
		fb.ValidationScore = float64(agreeing) / float64(validated)
		if fb.ValidationScore >= s.cfg.AutoValidateScore {
			fb.Validated = true
			s.validatedUntrained++
		}
	}

	s.feedback = append(s.feedback, fb)
	s.byIOC[key] = append(s.byIOC[key], fb)
	conflict := validated > 0 && fb.ValidationScore < s.cfg.ConflictScore
	s.mu.Unlock()

	if err := s.repo.Save(ctx, fb); err != nil {
		return "", fmt.Errorf("failed to persist feedback: %w", err)
	}
	metrics.RecordFeedback(string(fb.Type), fb.Validated)

	if conflict && s.notifier != nil {
		alert := ports.FeedbackConflict{
			FeedbackID:      fb.ID,
			IOCValue:        fb.IOCValue,
			IOCType:         string(fb.IOCType),
			FeedbackType:    string(fb.Type),
			ValidationScore: fb.ValidationScore,
			UserID:          fb.UserID,
		}
		if err := s.notifier.NotifyFeedbackConflict(alert); err != nil {
			s.logger.Warnw("conflict alert failed", "feedback_id", fb.ID, "error", err)
		}
	}

	s.logger.Debugw("feedback recorded", "id", fb.ID, "type", fb.Type,
		"score", fb.ValidationScore, "validated", fb.Validated)
	return fb.ID, nil
}

// MarkValidated flags feedback as reviewed and accepted by a human; it
// feeds both future consensus checks and the retraining counter.
func (s *Service) MarkValidated(ctx context.Context, feedbackID string) error {
	s.mu.Lock()
	var target *domain.UserFeedback
	for _, fb := range s.feedback {
		if fb.ID == feedbackID {
			target = fb
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown feedback id %s", ErrInvalidFeedback, feedbackID)
	}
	if !target.Validated {
		target.Validated = true
		s.validatedUntrained++
	}
	s.mu.Unlock()
	return s.repo.Save(ctx, target)
}

// ShouldRetrain is the explicit, idempotent retraining decision: enough
// newly validated feedback since the last training, over a minimum corpus.
// It can be called inline after submissions or from a scheduler without
// changing the decision logic.
func (s *Service) ShouldRetrain() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shouldRetrainLocked()
}

func (s *Service) shouldRetrainLocked() bool {
	total := 0
	for _, fb := range s.feedback {
		if fb.Validated {
			total++
		}
	}
	return s.validatedUntrained >= s.cfg.RetrainThreshold && total >= s.cfg.MinTotalFeedback
}

// MaybeRetrain runs a training pass when ShouldRetrain holds, replacing
// the model wholesale. Returns whether training ran.
func (s *Service) MaybeRetrain(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.shouldRetrainLocked() {
		s.mu.Unlock()
		return false, nil
	}

	var validated []*domain.UserFeedback
	for _, fb := range s.feedback {
		if fb.Validated {
			validated = append(validated, fb)
		}
	}

	patterns := MinePatterns(validated)
	model := s.trainModel(validated, patterns)
	s.model = model
	s.predictor = NewPredictor(model)
	s.validatedUntrained = 0
	s.mu.Unlock()

	if err := s.models.SaveModel(ctx, model); err != nil {
		return true, fmt.Errorf("failed to persist model: %w", err)
	}
	metrics.SetModelVersion(model.Version)
	s.logger.Infow("model retrained", "version", model.Version,
		"patterns", len(model.Patterns), "samples", model.TrainingSamples,
		"accuracy", model.Accuracy)
	return true, nil
}

// trainModel builds the next snapshot. Quality metrics are estimated by
// replaying the mined patterns against the validated corpus: a pattern hit
// on false-positive feedback is a true positive of the model.
func (s *Service) trainModel(validated []*domain.UserFeedback, patterns []domain.FeedbackPattern) *domain.LearningModel {
	next := defaultModel()
	next.Version = s.model.Version + 1
	next.TrainedAt = time.Now().UTC()
	next.Patterns = patterns
	next.TrainingSamples = len(validated)

	trial := NewPredictor(&domain.LearningModel{Patterns: patterns, Accuracy: 0.5, Weights: next.Weights})
	var tp, fp, fn, tn float64
	for _, fb := range validated {
		pred := trial.Predict(domain.IOC{Type: fb.IOCType, Value: fb.IOCValue})
		predictedFP := pred.Probability > 0.5
		actualFP := fb.Type == domain.FeedbackFalsePositive || fb.Type == domain.FeedbackConfidenceTooHigh
		switch {
		case predictedFP && actualFP:
			tp++
		case predictedFP && !actualFP:
			fp++
		case !predictedFP && actualFP:
			fn++
		default:
			tn++
		}
	}
	total := tp + fp + fn + tn
	if total > 0 {
		next.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		next.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		next.Recall = tp / (tp + fn)
	}
	if next.Precision+next.Recall > 0 {
		next.F1Score = 2 * next.Precision * next.Recall / (next.Precision + next.Recall)
	}
	return next
}

// PredictFalsePositive scores one IOC against the active model.
func (s *Service) PredictFalsePositive(ioc domain.IOC) domain.Prediction {
	s.mu.RLock()
	predictor := s.predictor
	s.mu.RUnlock()
	pred := predictor.Predict(ioc)

	if s.notifier != nil && pred.Probability > 0.7 && pred.Confidence >= applyThreshold {
		alert := ports.FalsePositiveRisk{
			IOCValue:    ioc.Value,
			IOCType:     string(ioc.Type),
			Probability: pred.Probability,
			Confidence:  pred.Confidence,
			Reasoning:   pred.Reasoning,
		}
		if err := s.notifier.NotifyHighFalsePositiveRisk(alert); err != nil {
			s.logger.Warnw("false-positive risk alert failed", "value", ioc.Value, "error", err)
		}
	}
	return pred
}

// Model returns the active snapshot.
func (s *Service) Model() *domain.LearningModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// defaultModel is the untrained baseline: neutral accuracy, no patterns,
// and priors that lean toward false positives for the loose text types
// (filenames, domains) and away from them for exact-length hashes.
func defaultModel() *domain.LearningModel {
	return &domain.LearningModel{
		Version:   0,
		TrainedAt: time.Now().UTC(),
		Accuracy:  0.5,
		Weights: domain.FeatureWeights{
			BaseScores: map[domain.IOCType]float64{
				domain.Filename:    0.8,
				domain.Domain:      0.4,
				domain.PID:         0.6,
				domain.ServiceName: 0.5,
				domain.ProcessName: 0.3,
				domain.IPv4:        0.0,
				domain.URL:         -0.2,
				domain.MD5:         -0.6,
				domain.SHA1:        -0.6,
				domain.SHA256:      -0.8,
				domain.SHA512:      -0.8,
				domain.CVE:         -1.0,
			},
			LengthWeight:     -0.8,
			ComplexityWeight: -0.9,
			ContextWeight:    -0.5,
			RoleWeights: map[string]float64{
				"senior_analyst": 1.2,
				"analyst":        1.0,
				"junior_analyst": 0.8,
			},
		},
	}
}
