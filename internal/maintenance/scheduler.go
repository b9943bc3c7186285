package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/pkg/metrics"
)

type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

type registered struct {
	job  Job
	spec string
	id   cron.EntryID
}

// Scheduler fires registered jobs on cron expressions evaluated in a fixed
// location. A panicking or failing job is logged and does not stop the others.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*registered
}

func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger)),
		logger: logger,
		jobs:   make(map[string]*registered),
	}
}

// Register adds job under spec, a standard five-field cron expression.
func (s *Scheduler) Register(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("maintenance: job %q already registered", job.Name())
	}

	id, err := s.cron.AddFunc(spec, func() {
		_ = s.execute(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("maintenance: schedule %q with %q: %w", job.Name(), spec, err)
	}
	s.jobs[job.Name()] = &registered{job: job, spec: spec, id: id}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "jobs", len(s.jobs), "location", s.cron.Location().String())
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for name, r := range s.jobs {
		e := s.cron.Entry(r.id)
		out = append(out, Entry{Name: name, Spec: r.spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	r, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return internal.NewNotFoundError(fmt.Sprintf("Job %q is not registered", name), internal.ErrCodeJobNotFound)
	}
	return s.execute(ctx, r.job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	start := time.Now()
	logger := s.logger.With("job", job.Name())

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("maintenance: job %s panicked: %v", job.Name(), rec)
		}

		status := "success"
		if err != nil {
			status = "failure"
			logger.Error("maintenance job failed", "error", err, "duration", time.Since(start))
		} else {
			logger.Debug("maintenance job finished", "duration", time.Since(start))
		}
		metrics.JobRuns.WithLabelValues(job.Name(), status).Inc()
		metrics.JobDuration.WithLabelValues(job.Name()).Observe(time.Since(start).Seconds())
	}()

	return job.Run(ctx)
}

// Dependencies are the services the jobs read from and notify through.
type Dependencies struct {
	Retention   Retention
	Submissions SubmissionCounter
	Accounts    InactiveFinder
	Notifier    Notifier
	Clock       clock.Clock
	Logger      *slog.Logger
	// ForcePurge skips the last-day-of-month guard. Only the jobs command sets it.
	ForcePurge bool
}

type Scheduled struct {
	Spec string
	Job  Job
}

// Jobs builds every maintenance job paired with the cron spec it runs on.
func Jobs(cfg internal.SchedulerConfig, deps Dependencies) []Scheduled {
	logger := deps.Logger
	return []Scheduled{
		{cfg.ReminderSpec, &ReminderJob{Retention: deps.Retention, Notifier: deps.Notifier, Clock: deps.Clock,
			Logger: logger.With("job", JobReminder)}},
		{cfg.PurgeSpec, &PurgeJob{Retention: deps.Retention, Clock: deps.Clock,
			Logger: logger.With("job", JobPurge), Force: deps.ForcePurge}},
		{cfg.DailySummarySpec, NewDailySummaryJob(deps.Submissions, deps.Notifier, deps.Clock,
			logger.With("job", JobDailySummary))},
		{cfg.WeeklySummarySpec, NewWeeklySummaryJob(deps.Submissions, deps.Notifier, deps.Clock,
			logger.With("job", JobWeeklySummary))},
		{cfg.InactivitySpec, &InactivityJob{Finder: deps.Accounts, Notifier: deps.Notifier, Clock: deps.Clock,
			Logger: logger.With("job", JobInactivity), Days: cfg.InactivityDays}},
		{cfg.MilestoneSpec, &MilestoneJob{Counter: deps.Submissions, Notifier: deps.Notifier,
			Logger: logger.With("job", JobMilestone), Milestones: cfg.Milestones, Tolerance: cfg.MilestoneTolerance}},
	}
}

// NewFromConfig registers every job on a scheduler running in cfg.Timezone.
func NewFromConfig(cfg internal.SchedulerConfig, deps Dependencies) (*Scheduler, error) {
	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	s := NewScheduler(loc, deps.Logger)
	for _, sj := range Jobs(cfg, deps) {
		if err := s.Register(sj.Spec, sj.Job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
