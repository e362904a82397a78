package base

import (
	"time"

	"go.uber.org/zap"
)

// ProgressReporter tracks a record-by-record batch and logs progress at a
// fixed record count or time interval, whichever comes first.
type ProgressReporter struct {
	logger *zap.Logger

	total     int64
	processed int64
	succeeded int64
	failed    int64

	startTime      time.Time
	lastReportTime time.Time
	reportEvery    int64
	reportInterval time.Duration
	now            func() time.Time
}

// ProgressSummary is the final tally of a batch.
type ProgressSummary struct {
	Processed  int64
	Succeeded  int64
	Failed     int64
	Elapsed    time.Duration
	Throughput float64 // records per second
}

// NewProgressReporter creates a reporter for a batch of total records.
func NewProgressReporter(logger *zap.Logger, total int) *ProgressReporter {
	return newProgressReporter(logger, total, time.Now)
}

func newProgressReporter(logger *zap.Logger, total int, now func() time.Time) *ProgressReporter {
	start := now()
	return &ProgressReporter{
		logger:         logger,
		total:          int64(total),
		startTime:      start,
		lastReportTime: start,
		reportEvery:    500,
		reportInterval: 10 * time.Second,
		now:            now,
	}
}

// Record counts one processed record.
func (pr *ProgressReporter) Record(success bool) {
	pr.processed++
	if success {
		pr.succeeded++
	} else {
		pr.failed++
	}

	if pr.processed%pr.reportEvery == 0 || pr.now().Sub(pr.lastReportTime) >= pr.reportInterval {
		pr.reportCurrentProgress()
	}
}

// GetProgress returns current progress
func (pr *ProgressReporter) GetProgress() (processed, total int64) {
	return pr.processed, pr.total
}

// GetETA estimates time remaining
func (pr *ProgressReporter) GetETA() time.Duration {
	if pr.processed == 0 || pr.total == 0 || pr.processed >= pr.total {
		return 0
	}

	elapsed := pr.now().Sub(pr.startTime)
	perRecord := elapsed / time.Duration(pr.processed)
	return perRecord * time.Duration(pr.total-pr.processed)
}

// Finish logs and returns the final summary.
func (pr *ProgressReporter) Finish() ProgressSummary {
	elapsed := pr.now().Sub(pr.startTime)
	summary := ProgressSummary{
		Processed: pr.processed,
		Succeeded: pr.succeeded,
		Failed:    pr.failed,
		Elapsed:   elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		summary.Throughput = float64(pr.processed) / secs
	}

	pr.logger.Info("batch complete",
		zap.Int64("processed", summary.Processed),
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
		zap.Float64("records_per_second", summary.Throughput))
	return summary
}

// reportCurrentProgress logs current progress
func (pr *ProgressReporter) reportCurrentProgress() {
	fields := []zap.Field{
		zap.Int64("processed", pr.processed),
		zap.Int64("failed", pr.failed),
		zap.Duration("elapsed", pr.now().Sub(pr.startTime)),
	}
	if pr.total > 0 {
		fields = append(fields,
			zap.Int64("total", pr.total),
			zap.Float64("percentage", float64(pr.processed)/float64(pr.total)*100),
			zap.Duration("eta", pr.GetETA()),
		)
	}
	pr.logger.Info("progress update", fields...)
	pr.lastReportTime = pr.now()
}
