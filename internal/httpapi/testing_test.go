package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"feedback-app/internal/config"
	"feedback-app/internal/feedback"
	"feedback-app/internal/metrics"
	"feedback-app/internal/models"
	"feedback-app/internal/session"
)

const testAPIKey = "test-key"

type fakeStore struct {
	mu      sync.Mutex
	saved   []models.Feedback
	saveErr error
	getErr  error
	listErr error
	limit   int
}

func (s *fakeStore) Save(_ context.Context, sub feedback.Submission) (models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return models.Feedback{}, s.saveErr
	}
	fb := models.Feedback{
		ID:       int64(len(s.saved) + 1),
		Email:    sub.Email,
		Mobile:   sub.Mobile,
		Feedback: sub.Feedback,
	}
	s.saved = append(s.saved, fb)
	return fb, nil
}

func (s *fakeStore) Get(_ context.Context, id int64) (models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.Feedback{}, s.getErr
	}
	for _, fb := range s.saved {
		if fb.ID == id {
			return fb, nil
		}
	}
	return models.Feedback{}, feedback.ErrNotFound
}

func (s *fakeStore) List(_ context.Context, limit int) ([]models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Feedback, 0, len(s.saved))
	for i := len(s.saved) - 1; i >= 0; i-- {
		out = append(out, s.saved[i])
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	store    *fakeStore
	metrics  *metrics.Metrics
	sessions *session.Manager
	deps     Deps
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		APIKeys: []config.APIKey{{Name: "reporting", Key: testAPIKey, Role: "read"}},
	}
	ts := &testServer{
		store:    &fakeStore{},
		metrics:  metrics.New(),
		sessions: session.NewManager([]byte("0123456789abcdef0123456789abcdef"), 10*time.Minute),
	}
	ts.deps = Deps{
		Config:   cfg,
		Store:    ts.store,
		Pool:     fakePinger{},
		Sessions: ts.sessions,
		Metrics:  ts.metrics,
		Log:      zap.NewNop(),
	}
	return ts
}
