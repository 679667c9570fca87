package metricsfx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

type emptyJournal struct{}

func (emptyJournal) FindLast(context.Context, domain.RunKind) (*domain.Run, error) {
	return nil, nil
}

func (emptyJournal) FindLastSuccessful(context.Context, domain.RunKind) (*domain.Run, error) {
	return nil, nil
}

func TestRouter(t *testing.T) {
	logger := logrus.New()
	logger.Out = io.Discard

	router, err := HttpRouter()
	require.NoError(t, err)

	RegisterLatestRunMetricHandler(router, LatestRunMetricHandler(logger, emptyJournal{}))

	registry, err := PrometheusRegistry(logger, emptyJournal{})
	require.NoError(t, err)
	RegisterPrometheusHandler(router, registry)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"kind":"backup","last_successful_at_mtime":0,"last_completion_mtime":0},{"kind":"restore","last_successful_at_mtime":0,"last_completion_mtime":0}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wpbackup_journal_scrape_errors_total 0")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
