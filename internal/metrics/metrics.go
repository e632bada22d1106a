package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_poll_runs_total",
		Help: "Total poll ticks",
	})
	PollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_poll_errors_total",
		Help: "Total poll ticks that failed to read the queue",
	})
	PollDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skeetstats_poll_duration_seconds",
		Help:    "Poll batch duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skeetstats_command_runs_total",
		Help: "Command handler invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skeetstats_command_errors_total",
		Help: "Command handler failures",
	}, []string{"command"})
	RepliesPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_replies_posted_total",
		Help: "Threaded replies published",
	})
	LikesPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_likes_posted_total",
		Help: "Likes published",
	})
	Broadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_broadcasts_total",
		Help: "Membership broadcasts published",
	})
	SnapshotRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skeetstats_snapshot_rows_total",
		Help: "Stat rows inserted by the snapshot job",
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skeetstats_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(PollRuns, PollErrors, PollDuration,
		CommandRuns, CommandErrors, RepliesPosted, LikesPosted,
		Broadcasts, SnapshotRows, APIRetries)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObservePollDuration records one batch duration.
func ObservePollDuration(start time.Time) {
	PollDuration.Observe(time.Since(start).Seconds())
}

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }
