package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
	"github.com/yurykabanov/wpbackup/pkg/domain"
)

type RunRepository interface {
	FindLast(context.Context, domain.RunKind) (*domain.Run, error)
	FindLastSuccessful(context.Context, domain.RunKind) (*domain.Run, error)
}

var runKinds = []domain.RunKind{domain.RunKindBackup, domain.RunKindRestore}

type RunMetricHandler struct {
	logger logrus.FieldLogger
	repo   RunRepository
}

func NewRunMetricHandler(logger logrus.FieldLogger, repo RunRepository) *RunMetricHandler {
	return &RunMetricHandler{
		logger: logger,
		repo:   repo,
	}
}

type runMetricResponse struct {
	Kind             domain.RunKind `json:"kind"`
	LastStatus       string         `json:"last_status,omitempty"`
	LastDay          string         `json:"last_day,omitempty"`
	LastStage        string         `json:"last_failed_stage,omitempty"`
	LastSuccessfulAt int64          `json:"last_successful_at_mtime"`
	LastCompletion   int64          `json:"last_completion_mtime"`
}

func (h *RunMetricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	result := make([]runMetricResponse, 0, len(runKinds))

	for _, kind := range runKinds {
		item, err := h.metric(ctx, kind)
		if err != nil {
			logger.WithError(err).Error("Unable to query last runs")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		result = append(result, item)
	}

	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	err := enc.Encode(result)
	if err != nil {
		logger.WithError(err).Error("Unable to encode response")
	}
}

func (h *RunMetricHandler) metric(ctx context.Context, kind domain.RunKind) (runMetricResponse, error) {
	item := runMetricResponse{Kind: kind}

	last, err := h.repo.FindLast(ctx, kind)
	if err != nil {
		return item, err
	}
	if last != nil {
		item.LastStatus = last.Status.String()
		item.LastDay = last.Day
		item.LastStage = last.Stage
	}

	success, err := h.repo.FindLastSuccessful(ctx, kind)
	if err != nil {
		return item, err
	}
	if success != nil {
		item.LastSuccessfulAt = success.CreatedAt.UnixNano() / 1e6

		if success.FinishedAt != nil {
			item.LastCompletion = success.FinishedAt.Sub(success.CreatedAt).Nanoseconds() / 1e6
		}
	}

	return item, nil
}
