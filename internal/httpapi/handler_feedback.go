package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"feedback-app/internal/dbpool"
	"feedback-app/internal/feedback"
	"feedback-app/internal/metrics"
	"feedback-app/internal/models"
	"feedback-app/internal/views"
)

// FeedbackStore is implemented by *feedback.Repository.
type FeedbackStore interface {
	Save(ctx context.Context, s feedback.Submission) (models.Feedback, error)
	Get(ctx context.Context, id int64) (models.Feedback, error)
	List(ctx context.Context, limit int) ([]models.Feedback, error)
}

type FeedbackListResponse struct {
	Items []models.Feedback `json:"items"`
}

type failurePage struct {
	Message string
}

func IndexHandler(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, log, http.StatusOK, views.Index, nil)
	}
}

// FeedbackSubmitHandler stores one form post and renders the success page.
// All three fields must be present; empty values are accepted.
func FeedbackSubmitHandler(store FeedbackStore, m *metrics.Metrics, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		for _, field := range []string{"email", "mobile", "feedback"} {
			if _, ok := r.PostForm[field]; !ok {
				http.Error(w, "missing field: "+field, http.StatusBadRequest)
				return
			}
		}

		sub := feedback.Submission{
			Email:    r.PostForm.Get("email"),
			Mobile:   r.PostForm.Get("mobile"),
			Feedback: r.PostForm.Get("feedback"),
		}.Trimmed()

		fb, err := store.Save(r.Context(), sub)
		if m != nil {
			m.RecordSave(err)
		}
		if err != nil {
			status := http.StatusInternalServerError
			msg := "Something went wrong while saving your feedback."
			if dbpool.IsRetryable(err) {
				status = http.StatusServiceUnavailable
				msg = "The service is busy. Please try again in a moment."
			}
			log.Error("save feedback failed",
				zap.Error(err),
				zap.Int("status", status))
			render(w, log, status, views.Failure, failurePage{Message: msg})
			return
		}

		render(w, log, http.StatusOK, views.Success, fb)
	}
}

func FeedbackListHandler(store FeedbackStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		items, err := store.List(r.Context(), limit)
		if err != nil {
			log.Error("list feedback failed", zap.Error(err))
			http.Error(w, "query error", errorStatus(err))
			return
		}
		if items == nil {
			items = []models.Feedback{}
		}
		writeJSON(w, http.StatusOK, FeedbackListResponse{Items: items})
	}
}

func FeedbackGetHandler(store FeedbackStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		fb, err := store.Get(r.Context(), id)
		switch {
		case errors.Is(err, feedback.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case err != nil:
			log.Error("get feedback failed", zap.Int64("id", id), zap.Error(err))
			http.Error(w, "query error", errorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, fb)
	}
}

func errorStatus(err error) int {
	if dbpool.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func render(w http.ResponseWriter, log *zap.Logger, status int, page string, data any) {
	if err := views.Render(w, status, page, data); err != nil {
		log.Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
