package handler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/domain"
)

var runStatuses = []string{"started", "failure", "success", "aborted"}

// RunCollector exposes the journal as prometheus metrics, it is read on
// every scrape.
type RunCollector struct {
	logger logrus.FieldLogger
	repo   RunRepository

	lastSuccess  *prometheus.Desc
	lastDuration *prometheus.Desc
	lastStatus   *prometheus.Desc
	scrapeErrors prometheus.Counter
}

func NewRunCollector(logger logrus.FieldLogger, repo RunRepository) *RunCollector {
	return &RunCollector{
		logger: logger,
		repo:   repo,

		lastSuccess: prometheus.NewDesc(
			"wpbackup_last_success_timestamp_seconds",
			"Start time of the last successful run.",
			[]string{"kind"}, nil,
		),
		lastDuration: prometheus.NewDesc(
			"wpbackup_last_success_duration_seconds",
			"Duration of the last successful run.",
			[]string{"kind"}, nil,
		),
		lastStatus: prometheus.NewDesc(
			"wpbackup_last_run_status",
			"Status of the last run, 1 for the current status.",
			[]string{"kind", "status"}, nil,
		),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wpbackup_journal_scrape_errors_total",
			Help: "Number of failed journal reads while collecting metrics.",
		}),
	}
}

func (c *RunCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lastSuccess
	ch <- c.lastDuration
	ch <- c.lastStatus
	c.scrapeErrors.Describe(ch)
}

func (c *RunCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, kind := range runKinds {
		if err := c.collectKind(ctx, ch, kind); err != nil {
			c.logger.WithError(err).WithField("kind", kind).Warn("Unable to collect run metrics")
			c.scrapeErrors.Inc()
		}
	}

	c.scrapeErrors.Collect(ch)
}

func (c *RunCollector) collectKind(ctx context.Context, ch chan<- prometheus.Metric, kind domain.RunKind) error {
	last, err := c.repo.FindLast(ctx, kind)
	if err != nil {
		return err
	}

	if last != nil {
		current := last.Status.String()

		for _, status := range runStatuses {
			value := 0.0
			if status == current {
				value = 1
			}

			ch <- prometheus.MustNewConstMetric(c.lastStatus, prometheus.GaugeValue, value, string(kind), status)
		}
	}

	success, err := c.repo.FindLastSuccessful(ctx, kind)
	if err != nil {
		return err
	}

	if success != nil {
		ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue,
			float64(success.CreatedAt.Unix()), string(kind))

		if success.FinishedAt != nil {
			ch <- prometheus.MustNewConstMetric(c.lastDuration, prometheus.GaugeValue,
				success.FinishedAt.Sub(success.CreatedAt).Seconds(), string(kind))
		}
	}

	return nil
}
