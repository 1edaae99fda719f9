package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdesk/attempt-service/internal/events"
	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories/memory"
	"github.com/quizdesk/attempt-service/internal/token"
	"github.com/quizdesk/attempt-service/internal/validator"
)

type testEnv struct {
	repo      *memory.Repository
	locks     *lock.Manager
	llm       *mockLLM
	publisher *events.MockEventPublisher
	finalizer Finalizer
	attempts  AttemptService
	verify    VerifyService
	assign    AssignmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.NewRepository()
	locks := lock.NewManager()
	logger := testLogger()
	mock := &mockLLM{}
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	grading := NewGradingService(mock, logger)
	fin := NewFinalizer(repo, repo.Exam(), grading, publisher, logger)

	policy := AssignmentPolicy{
		TimeLimitSeconds:  3600,
		MinSubmitSeconds:  1800,
		MinSubmitFloor:    60,
		VerifyMaxAttempts: 3,
		PassThreshold:     70,
	}
	v := validator.New()

	return &testEnv{
		repo:      repo,
		locks:     locks,
		llm:       mock,
		publisher: publisher,
		finalizer: fin,
		attempts:  NewAttemptService(repo, repo.Exam(), locks, fin, logger),
		verify:    NewVerifyService(repo, locks, logger, v),
		assign:    NewAssignmentService(repo, repo.Exam(), token.NewGenerator("test-secret"), policy, logger, v),
	}
}

// seedAttempt stores an exam, a candidate and a verified attempt and returns
// the token.
func (e *testEnv) seedAttempt(t *testing.T, mutate func(*models.Attempt)) string {
	t.Helper()
	ctx := context.Background()

	spec := specWith(singleChoiceQuestion("q1", 10))
	require.NoError(t, e.repo.Exam().Put(ctx, spec))

	candidate := &models.Candidate{Name: "Ada Lovelace", Phone: "13800138000"}
	require.NoError(t, e.repo.Candidate().Create(ctx, candidate))

	attempt := &models.Attempt{
		Token:             "tok-" + t.Name()[:min(8, len(t.Name()))],
		ExamKey:           spec.ExamKey,
		CandidateID:       candidate.ID,
		Status:            models.AttemptStatusVerified,
		TimeLimitSeconds:  3600,
		MinSubmitSeconds:  1800,
		VerifyMaxAttempts: 3,
		PassThreshold:     70,
	}
	attempt.SetAnswers(models.AnswerMap{})
	if mutate != nil {
		mutate(attempt)
	}
	require.NoError(t, e.repo.Attempt().Create(ctx, attempt))
	return attempt.Token
}

// rewindStart moves the countdown start into the past to simulate elapsed time.
func (e *testEnv) rewindStart(t *testing.T, tok string, ago time.Duration) {
	t.Helper()
	ctx := context.Background()
	attempt, err := e.repo.Attempt().Get(ctx, tok)
	require.NoError(t, err)
	started := time.Now().Add(-ago).UTC()
	attempt.StartedAt = &started
	require.NoError(t, e.repo.Attempt().Save(ctx, attempt))
}

func TestEnter_StartsCountdownOnce(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	first, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	require.NotNil(t, first.Attempt.StartedAt)
	assert.Equal(t, models.AttemptStatusInExam, first.Attempt.Status)
	assert.Greater(t, first.RemainingSeconds, 3590)

	second, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, first.Attempt.StartedAt.Unix(), second.Attempt.StartedAt.Unix(),
		"reload must keep the original deadline")
}

func TestEnter_ConcurrentStartsAgreeOnDeadline(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	const n = 20
	starts := make([]time.Time, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.attempts.Enter(ctx, tok)
			if assert.NoError(t, err) {
				starts[i] = *result.Attempt.StartedAt
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, starts[0], starts[i])
	}
}

func TestEnter_RequiresVerification(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, func(a *models.Attempt) {
		a.Status = models.AttemptStatusInvited
	})

	_, err := env.attempts.Enter(context.Background(), tok)
	assert.ErrorIs(t, err, ErrAttemptNotVerified)
}

func TestEnter_ExpiredAttemptIsCollected(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	env.rewindStart(t, tok, 2*time.Hour)

	_, err = env.attempts.Enter(ctx, tok)
	assert.ErrorIs(t, err, ErrAttemptTimeExpired)

	attempt, err := env.repo.Attempt().Get(ctx, tok)
	require.NoError(t, err)
	assert.True(t, attempt.Finalized())
	assert.Equal(t, models.AttemptStatusFinished, attempt.Status)
}

func TestSaveAnswers_MergesPerQuestion(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, env.attempts.SaveAnswers(ctx, tok, models.AnswerMap{
		"q1": models.TextAnswer("A"),
	}))
	// an empty value must not erase the saved answer
	require.NoError(t, env.attempts.SaveAnswers(ctx, tok, models.AnswerMap{
		"q1": models.TextAnswer(""),
	}))

	attempt, err := env.repo.Attempt().Get(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "A", attempt.AnswerValues()["q1"].Text())
}

func TestSaveAnswers_BeforeEntryRejected(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)

	err := env.attempts.SaveAnswers(context.Background(), tok, models.AnswerMap{
		"q1": models.TextAnswer("A"),
	})
	assert.ErrorIs(t, err, ErrAttemptNotStarted)
}

func TestSubmit_TooEarlyCarriesWaitHint(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	env.rewindStart(t, tok, 10*time.Second)

	_, err = env.attempts.Submit(ctx, tok)
	te, ok := IsTooEarly(err)
	require.True(t, ok, "expected a too-early error, got %v", err)
	assert.InDelta(t, 1790, te.WaitSeconds, 3)
}

func TestSubmit_FinalizesOnce(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	require.NoError(t, env.attempts.SaveAnswers(ctx, tok, models.AnswerMap{
		"q1": models.TextAnswer("A"),
	}))
	env.rewindStart(t, tok, 30*time.Minute)

	finalized, err := env.attempts.Submit(ctx, tok)
	require.NoError(t, err)
	require.NotNil(t, finalized.GradingData())
	assert.Equal(t, 100, finalized.GradingData().Percentage)

	// second submit reports the terminal state without regrading
	again, err := env.attempts.Submit(ctx, tok)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	require.NotNil(t, again)
	assert.Equal(t, finalized.GradingData().GradedAt, again.GradingData().GradedAt)

	archives, err := env.repo.Archive().ListByToken(ctx, tok)
	require.NoError(t, err)
	assert.Len(t, archives, 1, "archive must be written exactly once")
}

func TestSubmit_ConcurrentCallsGradeOnce(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	env.rewindStart(t, tok, 30*time.Minute)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.attempts.Submit(ctx, tok)
		}()
	}
	wg.Wait()

	archives, err := env.repo.Archive().ListByToken(ctx, tok)
	require.NoError(t, err)
	assert.Len(t, archives, 1)
	assert.Len(t, env.publisher.GetPublishedEvents(), 1)
}

func TestSubmit_PropagatesResultToCandidate(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	_, err := env.attempts.Enter(ctx, tok)
	require.NoError(t, err)
	require.NoError(t, env.attempts.SaveAnswers(ctx, tok, models.AnswerMap{
		"q1": models.TextAnswer("A"),
	}))
	env.rewindStart(t, tok, 31*time.Minute)

	finalized, err := env.attempts.Submit(ctx, tok)
	require.NoError(t, err)

	candidate, err := env.repo.Candidate().Get(ctx, finalized.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusFinished, candidate.Status)
	require.NotNil(t, candidate.LatestScore)
	assert.Equal(t, 100, *candidate.LatestScore)
	require.NotNil(t, candidate.DurationSeconds)
	assert.InDelta(t, 31*60, *candidate.DurationSeconds, 3)

	events := env.publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "attempt.finished", string(events[0].Type))
}

func TestStatus_ReportsCountdownAndWait(t *testing.T) {
	env := newTestEnv(t)
	tok := env.seedAttempt(t, nil)
	ctx := context.Background()

	status, err := env.attempts.Status(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusVerified, status.Status)
	assert.Equal(t, 0, status.RemainingSeconds, "countdown not started yet")

	_, err = env.attempts.Enter(ctx, tok)
	require.NoError(t, err)

	status, err = env.attempts.Status(ctx, tok)
	require.NoError(t, err)
	assert.Greater(t, status.RemainingSeconds, 3590)
	assert.Greater(t, status.SubmitWaitSeconds, 1790)
	assert.False(t, status.Finalized)
}
