package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sysu-ecnc-dev/campus-schedule/backend/internal/domain"
)

var (
	ImportSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_schedule_import_sessions_total",
		Help: "Number of calendar import sessions created, by source",
	}, []string{"source"})

	ImportOccurrences = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_schedule_import_occurrences_total",
		Help: "Number of reconciled occurrences produced by import sessions, by status",
	}, []string{"status"})

	FeedFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_schedule_feed_fetch_errors_total",
		Help: "Number of failed calendar feed fetches, by source",
	}, []string{"source"})

	ImportProcessSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campus_schedule_import_process_seconds",
		Help:    "Time spent expanding, classifying and reconciling a calendar feed",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	databasePing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_schedule_database_ping_microsec",
		Help: "The latency of a database ping in microseconds",
	})
)

// ObserveImport 记录一次导入处理的结果
func ObserveImport(source string, stats domain.ImportStats, elapsed time.Duration) {
	ImportSessions.WithLabelValues(source).Inc()
	ImportOccurrences.WithLabelValues(string(domain.StatusNew)).Add(float64(stats.New))
	ImportOccurrences.WithLabelValues(string(domain.StatusUpdated)).Add(float64(stats.Updated))
	ImportOccurrences.WithLabelValues(string(domain.StatusUnchanged)).Add(float64(stats.Unchanged))
	ImportProcessSeconds.Observe(elapsed.Seconds())
}

// WatchDatabase 定时 ping 数据库并记录延迟，ctx 结束后退出
func WatchDatabase(ctx context.Context, db *sql.DB, interval time.Duration, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			start := time.Now()
			err := db.PingContext(pingCtx)
			cancel()
			if err != nil {
				slog.Error("数据库 ping 失败", "error", err)
				continue
			}
			databasePing.Set(float64(time.Since(start).Microseconds()))
		}
	}
}
