package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizdesk/attempt-service/internal/events"
	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/models"
	"github.com/quizdesk/attempt-service/internal/repositories/memory"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/token"
	"github.com/quizdesk/attempt-service/internal/utils"
	"github.com/quizdesk/attempt-service/internal/validator"
)

type stubLLM struct{}

func (stubLLM) CompleteJSON(context.Context, string, string) (string, error) {
	return `{"score": 8, "reason": "solid answer", "relevance": 9}`, nil
}

func (stubLLM) CompleteText(context.Context, string, string) (string, error) {
	return "capable candidate", nil
}

type testServer struct {
	router *gin.Engine
	repo   *memory.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewRepository()
	logger := utils.NewDevelopmentLogger()
	locks := lock.NewManager()
	v := validator.New()
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	grading := services.NewGradingService(stubLLM{}, logger)
	fin := services.NewFinalizer(repo, repo.Exam(), grading, publisher, logger)
	policy := services.AssignmentPolicy{
		TimeLimitSeconds:  3600,
		MinSubmitSeconds:  1800,
		MinSubmitFloor:    60,
		VerifyMaxAttempts: 3,
		PassThreshold:     70,
	}

	hm := NewHandlerManager(
		services.NewAttemptService(repo, repo.Exam(), locks, fin, logger),
		services.NewVerifyService(repo, locks, logger, v),
		services.NewAssignmentService(repo, repo.Exam(), token.NewGenerator("test-secret"), policy, logger, v),
		services.NewExportService(repo, logger),
		logger,
	)

	router := gin.New()
	hm.SetupRoutes(router)
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedExamAndAssignment(t *testing.T) string {
	t.Helper()

	spec := map[string]interface{}{
		"exam_key": "backend-2026",
		"title":    "Backend Screening",
		"questions": []map[string]interface{}{
			{
				"qid": "q1", "type": "single", "max_points": 10, "stem_md": "Pick A",
				"options": []map[string]interface{}{
					{"key": "A", "text": "right", "correct": true},
					{"key": "B", "text": "wrong"},
				},
			},
			{
				"qid": "q2", "type": "short", "max_points": 10,
				"stem_md": "Explain idempotency", "rubric": "mentions repeated effect",
			},
		},
	}
	w := s.do(t, http.MethodPut, "/api/v1/admin/exams", spec)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/admin/assignments", map[string]interface{}{
		"exam_key":        "backend-2026",
		"candidate_name":  "Ada Lovelace",
		"candidate_phone": "13800138000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.Token, token.Length)
	return created.Token
}

func (s *testServer) rewindStart(t *testing.T, tok string, ago time.Duration) {
	t.Helper()
	ctx := context.Background()
	attempt, err := s.repo.Attempt().Get(ctx, tok)
	require.NoError(t, err)
	started := time.Now().Add(-ago).UTC()
	attempt.StartedAt = &started
	require.NoError(t, s.repo.Attempt().Save(ctx, attempt))
}

func TestCandidateFlow(t *testing.T) {
	s := newTestServer(t)
	tok := s.seedExamAndAssignment(t)
	base := "/api/v1/attempts/" + tok

	// wrong identity burns one try
	w := s.do(t, http.MethodPost, base+"/verify", map[string]string{
		"name": "Not Ada", "phone": "13800138000",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_tries":2`)

	// correct identity verifies
	w = s.do(t, http.MethodPost, base+"/verify", map[string]string{
		"name": "Ada Lovelace", "phone": "13800138000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// entering starts the countdown and returns the redacted exam
	w = s.do(t, http.MethodPost, base+"/enter", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `"correct"`,
		"candidate view must not leak correct flags")
	assert.NotContains(t, w.Body.String(), "rubric")

	// saving answers
	w = s.do(t, http.MethodPost, base+"/answers", map[string]interface{}{
		"answers": map[string]interface{}{
			"q1": "A",
			"q2": "an operation is idempotent when repeating it has the same effect as doing it once",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// submitting too early is rejected with a wait hint
	w = s.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too_early")
	assert.Contains(t, w.Body.String(), "wait_seconds")

	// after the minimum time the submission goes through
	s.rewindStart(t, tok, 31*time.Minute)
	w = s.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Status     string `json:"status"`
		Percentage int    `json:"percentage"`
		Recommend  bool   `json:"recommend"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "finished", result.Status)
	assert.Equal(t, 90, result.Percentage) // 10 objective + 8 subjective of 20
	assert.True(t, result.Recommend)

	// repeated submit reports the same terminal result
	w = s.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// the operator view carries the grading detail
	w = s.do(t, http.MethodGet, "/api/v1/admin/attempts/"+tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"percentage":90`)

	// one archive snapshot exists
	w = s.do(t, http.MethodGet, "/api/v1/admin/attempts/"+tok+"/archives", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var archives []models.ArchiveRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &archives))
	assert.Len(t, archives, 1)
}

func TestVerifyLockout(t *testing.T) {
	s := newTestServer(t)
	tok := s.seedExamAndAssignment(t)
	base := "/api/v1/attempts/" + tok
	wrong := map[string]string{"name": "Mallory", "phone": "13800138000"}

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, base+"/verify", wrong)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(t, http.MethodPost, base+"/verify", wrong)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// lockout is permanent, even with correct details
	w = s.do(t, http.MethodPost, base+"/verify", map[string]string{
		"name": "Ada Lovelace", "phone": "13800138000",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnterRequiresVerification(t *testing.T) {
	s := newTestServer(t)
	tok := s.seedExamAndAssignment(t)

	w := s.do(t, http.MethodPost, "/api/v1/attempts/"+tok+"/enter", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMalformedToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/attempts/xx/enter", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownToken(t *testing.T) {
	s := newTestServer(t)

	tok := strings.Repeat("a", token.Length)
	w := s.do(t, http.MethodGet, "/api/v1/attempts/"+tok+"/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportResults(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/admin/results/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "results.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}
