package learning

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/core/ports"
)

type fakeFeedbackRepo struct {
	saved []*domain.UserFeedback
	seed  []*domain.UserFeedback
	err   error
}

func (r *fakeFeedbackRepo) Save(_ context.Context, fb *domain.UserFeedback) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, fb)
	return nil
}

func (r *fakeFeedbackRepo) FindByIOC(_ context.Context, iocID string) ([]*domain.UserFeedback, error) {
	var out []*domain.UserFeedback
	for _, fb := range r.seed {
		if fb.IOCID == iocID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (r *fakeFeedbackRepo) FindAll(_ context.Context) ([]*domain.UserFeedback, error) {
	return r.seed, nil
}

type fakeModelRepo struct {
	saved  []*domain.LearningModel
	latest *domain.LearningModel
}

func (r *fakeModelRepo) SaveModel(_ context.Context, m *domain.LearningModel) error {
	r.saved = append(r.saved, m)
	r.latest = m
	return nil
}

func (r *fakeModelRepo) LatestModel(_ context.Context) (*domain.LearningModel, error) {
	return r.latest, nil
}

type fakeNotifier struct {
	conflicts []ports.FeedbackConflict
	risks     []ports.FalsePositiveRisk
}

func (n *fakeNotifier) NotifyFeedbackConflict(a ports.FeedbackConflict) error {
	n.conflicts = append(n.conflicts, a)
	return nil
}

func (n *fakeNotifier) NotifyHighFalsePositiveRisk(a ports.FalsePositiveRisk) error {
	n.risks = append(n.risks, a)
	return nil
}

func newTestService(t *testing.T, repo *fakeFeedbackRepo, models *fakeModelRepo, notifier ports.Notifier, cfg Config) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), repo, models, notifier, cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedValidated(iocID string, typ domain.FeedbackType, n int) []*domain.UserFeedback {
	out := make([]*domain.UserFeedback, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &domain.UserFeedback{
			ID:        fmt.Sprintf("seed-%s-%d", typ, i),
			IOCID:     iocID,
			IOCType:   domain.Filename,
			IOCValue:  "svchost.exe",
			Type:      typ,
			Validated: true,
		})
	}
	return out
}

func TestSubmitFeedbackNoPriorsDefaultsToHalf(t *testing.T) {
	repo := &fakeFeedbackRepo{}
	svc := newTestService(t, repo, &fakeModelRepo{}, nil, DefaultLearningConfig())

	id, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-1", IOCType: domain.Filename, IOCValue: "a.exe",
		Type: domain.FeedbackFalsePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if id == "" {
		t.Error("expected a generated feedback id")
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected 1 persisted feedback, got %d", len(repo.saved))
	}
	fb := repo.saved[0]
	if fb.ValidationScore != 0.5 {
		t.Errorf("score = %v, want 0.5 with no prior feedback", fb.ValidationScore)
	}
	if fb.Validated {
		t.Error("feedback must not auto-validate without consensus")
	}
}

func TestSubmitFeedbackConsensusAutoValidates(t *testing.T) {
	repo := &fakeFeedbackRepo{seed: seedValidated("ioc-1", domain.FeedbackFalsePositive, 4)}
	svc := newTestService(t, repo, &fakeModelRepo{}, nil, DefaultLearningConfig())

	_, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-1", IOCType: domain.Filename, IOCValue: "svchost.exe",
		Type: domain.FeedbackFalsePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	fb := repo.saved[0]
	if fb.ValidationScore != 1.0 {
		t.Errorf("score = %v, want 1.0 with full agreement", fb.ValidationScore)
	}
	if !fb.Validated {
		t.Error("full agreement must auto-validate")
	}
}

func TestSubmitFeedbackCompatibleTypesAgree(t *testing.T) {
	repo := &fakeFeedbackRepo{seed: seedValidated("ioc-1", domain.FeedbackConfidenceTooHigh, 5)}
	svc := newTestService(t, repo, &fakeModelRepo{}, nil, DefaultLearningConfig())

	// false_positive agrees with confidence_too_high priors.
	_, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-1", IOCType: domain.Filename, IOCValue: "svchost.exe",
		Type: domain.FeedbackFalsePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if !repo.saved[0].Validated {
		t.Error("compatible feedback types should count as agreement")
	}
}

func TestSubmitFeedbackConflictNotifies(t *testing.T) {
	repo := &fakeFeedbackRepo{seed: seedValidated("ioc-1", domain.FeedbackFalsePositive, 5)}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeModelRepo{}, notifier, DefaultLearningConfig())

	_, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-1", IOCType: domain.Filename, IOCValue: "svchost.exe",
		Type: domain.FeedbackTruePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	fb := repo.saved[0]
	if fb.ValidationScore != 0.0 {
		t.Errorf("score = %v, want 0.0 against unanimous disagreement", fb.ValidationScore)
	}
	if fb.Validated {
		t.Error("conflicting feedback must not validate")
	}
	if len(notifier.conflicts) != 1 {
		t.Fatalf("expected 1 conflict alert, got %d", len(notifier.conflicts))
	}
	if notifier.conflicts[0].FeedbackID != fb.ID {
		t.Error("conflict alert carries wrong feedback id")
	}
}

func TestValueOnlyFeedbackKeepsConsensusSeparate(t *testing.T) {
	repo := &fakeFeedbackRepo{}
	for i := 0; i < 5; i++ {
		repo.seed = append(repo.seed, &domain.UserFeedback{
			ID: fmt.Sprintf("seed-%d", i), IOCType: domain.Domain,
			IOCValue: "evil-one.com", Type: domain.FeedbackFalsePositive, Validated: true,
		})
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, repo, &fakeModelRepo{}, notifier, DefaultLearningConfig())

	// First-ever feedback for an unrelated address: the validated domain
	// corpus must not lend it consensus.
	_, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCType: domain.IPv4, IOCValue: "203.0.113.9",
		Type: domain.FeedbackTruePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	fb := repo.saved[0]
	if fb.ValidationScore != 0.5 {
		t.Errorf("score = %v, want 0.5 for first feedback about a new indicator", fb.ValidationScore)
	}
	if fb.Validated {
		t.Error("first feedback must not auto-validate")
	}
	if len(notifier.conflicts) != 0 {
		t.Errorf("conflict alerts = %d, want 0 without priors for this indicator", len(notifier.conflicts))
	}

	// Value-only feedback for the same indicator still pools, regardless
	// of value casing.
	_, err = svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCType: domain.Domain, IOCValue: "EVIL-ONE.COM",
		Type: domain.FeedbackFalsePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	fb = repo.saved[1]
	if fb.ValidationScore != 1.0 || !fb.Validated {
		t.Errorf("score = %v validated = %v, want unanimous agreement for the same value", fb.ValidationScore, fb.Validated)
	}
}

func TestSubmitFeedbackRejectsIncomplete(t *testing.T) {
	svc := newTestService(t, &fakeFeedbackRepo{}, &fakeModelRepo{}, nil, DefaultLearningConfig())
	if _, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{Type: domain.FeedbackFalsePositive}); err == nil {
		t.Error("expected error for feedback without a target IOC")
	}
	if _, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{IOCID: "x"}); err == nil {
		t.Error("expected error for feedback without a type")
	}
}

func TestMaybeRetrainBelowThresholdIsNoop(t *testing.T) {
	models := &fakeModelRepo{}
	svc := newTestService(t, &fakeFeedbackRepo{}, models, nil, DefaultLearningConfig())

	ran, err := svc.MaybeRetrain(context.Background())
	if err != nil {
		t.Fatalf("MaybeRetrain: %v", err)
	}
	if ran {
		t.Error("retraining must not run with no validated feedback")
	}
	if len(models.saved) != 0 {
		t.Error("no model should be persisted")
	}
}

func TestMaybeRetrainTrainsAndResets(t *testing.T) {
	cfg := DefaultLearningConfig()
	cfg.RetrainThreshold = 3
	cfg.MinTotalFeedback = 3
	repo := &fakeFeedbackRepo{seed: seedValidated("ioc-1", domain.FeedbackFalsePositive, 3)}
	models := &fakeModelRepo{}
	svc := newTestService(t, repo, models, nil, cfg)

	// Three submissions against unanimous priors validate immediately.
	for i := 0; i < 3; i++ {
		if _, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
			IOCID: "ioc-1", IOCType: domain.Filename, IOCValue: "svchost.exe",
			Type: domain.FeedbackFalsePositive,
		}); err != nil {
			t.Fatalf("SubmitFeedback: %v", err)
		}
	}

	ran, err := svc.MaybeRetrain(context.Background())
	if err != nil {
		t.Fatalf("MaybeRetrain: %v", err)
	}
	if !ran {
		t.Fatal("expected retraining to run")
	}
	if len(models.saved) != 1 {
		t.Fatalf("expected 1 persisted model, got %d", len(models.saved))
	}
	m := models.saved[0]
	if m.Version != 1 {
		t.Errorf("version = %d, want 1", m.Version)
	}
	if m.TrainingSamples != 6 {
		t.Errorf("training samples = %d, want 6", m.TrainingSamples)
	}
	if svc.Model() != m {
		t.Error("service should serve the new model")
	}

	// Idempotent: the counter reset, so an immediate second call is a noop.
	ran, err = svc.MaybeRetrain(context.Background())
	if err != nil {
		t.Fatalf("MaybeRetrain: %v", err)
	}
	if ran {
		t.Error("second retrain without new feedback must be a noop")
	}
}

func TestMaybeRetrainMinesPatterns(t *testing.T) {
	cfg := DefaultLearningConfig()
	cfg.RetrainThreshold = 1
	cfg.MinTotalFeedback = 3
	repo := &fakeFeedbackRepo{}
	for i := 0; i < 3; i++ {
		repo.seed = append(repo.seed, &domain.UserFeedback{
			ID: fmt.Sprintf("seed-%d", i), IOCID: fmt.Sprintf("ioc-%d", i),
			IOCType: domain.Filename, IOCValue: fmt.Sprintf("update_%d.exe", i),
			Type: domain.FeedbackFalsePositive, Validated: true,
		})
	}
	models := &fakeModelRepo{}
	svc := newTestService(t, repo, models, nil, cfg)

	// One more validated item trips the threshold.
	if _, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-0", IOCType: domain.Filename, IOCValue: "update_0.exe",
		Type: domain.FeedbackFalsePositive,
	}); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	ran, err := svc.MaybeRetrain(context.Background())
	if err != nil {
		t.Fatalf("MaybeRetrain: %v", err)
	}
	if !ran {
		t.Fatal("expected retraining to run")
	}
	if len(models.saved[0].Patterns) == 0 {
		t.Fatal("expected mined patterns in the trained model")
	}
}

func TestMarkValidatedCountsTowardRetraining(t *testing.T) {
	cfg := DefaultLearningConfig()
	cfg.RetrainThreshold = 1
	cfg.MinTotalFeedback = 1
	repo := &fakeFeedbackRepo{}
	svc := newTestService(t, repo, &fakeModelRepo{}, nil, cfg)

	id, err := svc.SubmitFeedback(context.Background(), &domain.UserFeedback{
		IOCID: "ioc-1", IOCType: domain.Domain, IOCValue: "example.com",
		Type: domain.FeedbackFalsePositive,
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if svc.ShouldRetrain() {
		t.Fatal("unvalidated feedback must not trigger retraining")
	}
	if err := svc.MarkValidated(context.Background(), id); err != nil {
		t.Fatalf("MarkValidated: %v", err)
	}
	if !svc.ShouldRetrain() {
		t.Error("validated feedback should trip the threshold")
	}
	if err := svc.MarkValidated(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown feedback id")
	}
}

func TestPredictFalsePositiveHighRiskNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	models := &fakeModelRepo{latest: modelWithPattern(0.95)}
	svc := newTestService(t, &fakeFeedbackRepo{}, models, notifier, DefaultLearningConfig())

	pred := svc.PredictFalsePositive(domain.IOC{Type: domain.Filename, Value: "update_check.exe"})
	if pred.Probability <= 0.7 {
		t.Fatalf("expected high probability from strong pattern, got %.2f", pred.Probability)
	}
	if len(notifier.risks) != 1 {
		t.Fatalf("expected 1 risk alert, got %d", len(notifier.risks))
	}
}
