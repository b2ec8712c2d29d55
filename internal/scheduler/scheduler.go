package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"BreadthSentinel/internal/breadth"
	"BreadthSentinel/internal/metrics"
	"BreadthSentinel/internal/notifier"
)

// Scheduler runs the daily refresh and answers Telegram commands.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *breadth.Engine
	Notifier *notifier.TelegramNotifier
	Metrics  *metrics.Metrics
	Ctx      context.Context

	progress breadth.Progress
}

// NewScheduler creates a new Scheduler. progress may be nil.
func NewScheduler(ctx context.Context, engine *breadth.Engine, tn *notifier.TelegramNotifier, m *metrics.Metrics, progress breadth.Progress) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   engine,
		Notifier: tn,
		Metrics:  m,
		Ctx:      ctx,
		progress: progress,
	}
}

// RegisterAll registers the daily refresh task.
func (s *Scheduler) RegisterAll(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.refreshTask); err != nil {
		return fmt.Errorf("register daily refresh: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (manual trigger /
// RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	log.Println("[INFO] running breadth refresh")
	start := time.Now()

	series, err := s.Engine.Current(s.Ctx, s.progressFunc())
	if err != nil {
		s.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		log.Printf("[ERROR] breadth refresh: %v", err)
		s.trySend(fmt.Sprintf("❌ Breadth refresh failed: %v", err))
		return
	}

	s.Metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	s.Metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	s.Metrics.LastRefreshTime.SetToCurrentTime()
	if len(series) > 0 {
		s.Metrics.LatestBreadth.Set(series[len(series)-1].PercentageAbove)
	}

	trend, err := s.Engine.TrendSeries()
	if err != nil {
		log.Printf("[WARN] trend series: %v", err)
		trend = nil
	}

	s.trySend(notifier.FormatDailySummary(series, trend))
	log.Printf("[INFO] breadth refresh done in %s (%d dates)", time.Since(start).Round(time.Second), len(series))
}

func (s *Scheduler) progressFunc() breadth.Progress {
	return func(percent int, message string) {
		if s.progress != nil {
			s.progress(percent, message)
		}
		log.Printf("[INFO] %3d%% %s", percent, message)
	}
}

// HandleCommand answers a Telegram command.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "/breadth":
		series, err := s.Engine.Current(s.Ctx, s.progressFunc())
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatDailySummary(series, nil)
	case "/trend":
		trend, err := s.Engine.TrendSeries()
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatTrend(trend)
	case "/refresh":
		go s.RunRefreshNow()
		return "🔄 Refresh started."
	case "/help":
		return "Commands:\n/breadth — current market breadth\n/trend — index trend distance\n/refresh — force a refresh\n/help — this message"
	default:
		return ""
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.Send(text); err != nil {
		log.Printf("[ERROR] telegram send: %v", err)
	}
}
