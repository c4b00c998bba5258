// Package scheduler runs the ingestion jobs on background timers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type JobKind int

const (
	JobFeeds JobKind = iota + 1
	JobRates
	JobNotify
)

var kinds = []JobKind{JobFeeds, JobRates, JobNotify}

func (k JobKind) String() string {
	switch k {
	case JobFeeds:
		return "feeds"
	case JobRates:
		return "rates"
	case JobNotify:
		return "notify"
	default:
		return fmt.Sprintf("job(%d)", int(k))
	}
}

func (k JobKind) onceTag() string {
	return k.String() + "-once"
}

var (
	ErrJobBusy           = errors.New("job is already running")
	ErrUnknownJob        = errors.New("job is not registered")
	ErrAlreadyRegistered = errors.New("job is already registered")
)

type JobFunc func(ctx context.Context) error

type runIDKey struct{}

// WithRunID makes a run started with ctx log under id instead of a fresh one.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func runID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

type job struct {
	fn JobFunc

	// lock держится на время выполнения, второй запуск пропускается
	lock sync.Mutex

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	runCount int
	lastErr  string
}

type JobStatus struct {
	Kind      string    `json:"kind"`
	Running   bool      `json:"running"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run"`
	RunCount  int       `json:"run_count"`
	LastError string    `json:"last_error,omitempty"`
}

type Scheduler struct {
	cron   *gocron.Scheduler
	logger *logrus.Logger

	mu   sync.RWMutex
	jobs map[JobKind]*job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *logrus.Logger, loc *time.Location) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   gocron.NewScheduler(loc),
		logger: logger,
		jobs:   make(map[JobKind]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Register(kind JobKind, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[kind]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, kind)
	}

	s.jobs[kind] = &job{fn: fn}

	return nil
}

func (s *Scheduler) job(kind JobKind) (*job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, kind)
	}

	return j, nil
}

// Schedule runs kind every interval, first after one interval.
// A previous schedule of the same kind is replaced.
func (s *Scheduler) Schedule(kind JobKind, interval time.Duration) error {
	if _, err := s.job(kind); err != nil {
		return err
	}

	if err := s.removeTag(kind.String()); err != nil {
		return err
	}

	_, err := s.cron.Every(interval).
		Tag(kind.String()).
		SingletonMode().
		WaitForSchedule().
		Do(s.fire, kind)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", kind, err)
	}

	return nil
}

// ScheduleOnce runs kind a single time after delay. A delay <= 0 runs it as soon as the scheduler starts.
func (s *Scheduler) ScheduleOnce(kind JobKind, delay time.Duration) error {
	if _, err := s.job(kind); err != nil {
		return err
	}

	if err := s.removeTag(kind.onceTag()); err != nil {
		return err
	}

	if delay <= 0 {
		_, err := s.cron.Every(time.Hour).
			Tag(kind.onceTag()).
			LimitRunsTo(1).
			Do(s.fire, kind)

		return err
	}

	_, err := s.cron.Every(delay).
		Tag(kind.onceTag()).
		LimitRunsTo(1).
		WaitForSchedule().
		Do(s.fire, kind)

	return err
}

func (s *Scheduler) removeTag(tag string) error {
	err := s.cron.RemoveByTag(tag)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return fmt.Errorf("failed to remove job %s: %w", tag, err)
	}

	return nil
}

// RunNow runs kind synchronously and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, kind JobKind) error {
	j, err := s.job(kind)
	if err != nil {
		return err
	}

	return s.execute(ctx, kind, j.fn, j)
}

// RunFunc runs fn synchronously in place of the registered function of kind,
// sharing its exclusion and status.
func (s *Scheduler) RunFunc(ctx context.Context, kind JobKind, fn JobFunc) error {
	j, err := s.job(kind)
	if err != nil {
		return err
	}

	return s.execute(ctx, kind, fn, j)
}

func (s *Scheduler) fire(kind JobKind) {
	j, err := s.job(kind)
	if err != nil {
		s.logger.Errorf("scheduled unknown job %s", kind)
		return
	}

	if err := s.execute(s.ctx, kind, j.fn, j); errors.Is(err, ErrJobBusy) {
		s.logger.WithField("job", kind.String()).Info("previous run is still in progress, skipping")
	}
}

func (s *Scheduler) execute(ctx context.Context, kind JobKind, fn JobFunc, j *job) (err error) {
	if !j.lock.TryLock() {
		return ErrJobBusy
	}
	defer j.lock.Unlock()

	entry := s.logger.WithFields(logrus.Fields{
		"job":    kind.String(),
		"run_id": runID(ctx),
	})

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("job", kind.String())
	})

	start := time.Now()

	j.mu.Lock()
	j.running = true
	j.mu.Unlock()

	defer func() {
		reported := false
		if p := recover(); p != nil {
			hub.Recover(p)
			reported = true
			err = fmt.Errorf("panic in job %s: %v", kind, p)
		}

		j.mu.Lock()
		j.running = false
		j.lastRun = start
		j.runCount++
		j.lastErr = ""
		if err != nil {
			j.lastErr = err.Error()
		}
		j.mu.Unlock()

		if err != nil {
			if !reported {
				hub.CaptureException(err)
			}
			entry.WithField("duration", time.Since(start).String()).Errorf("job failed: %v", err)
			return
		}

		entry.WithField("duration", time.Since(start).String()).Info("job finished")
	}()

	entry.Info("job started")

	return fn(ctx)
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop cancels the context of scheduled runs in flight and prevents future firings.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
}

func (s *Scheduler) IsRunning() bool {
	return s.cron.IsRunning()
}

func (s *Scheduler) Status() []JobStatus {
	next := make(map[string]time.Time)
	for _, cj := range s.cron.Jobs() {
		for _, tag := range cj.Tags() {
			name := strings.TrimSuffix(tag, "-once")

			run := cj.NextRun()
			if run.IsZero() {
				continue
			}

			if cur, ok := next[name]; !ok || run.Before(cur) {
				next[name] = run
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []JobStatus
	for _, kind := range kinds {
		j, ok := s.jobs[kind]
		if !ok {
			continue
		}

		j.mu.Lock()
		result = append(result, JobStatus{
			Kind:      kind.String(),
			Running:   j.running,
			NextRun:   next[kind.String()],
			LastRun:   j.lastRun,
			RunCount:  j.runCount,
			LastError: j.lastErr,
		})
		j.mu.Unlock()
	}

	return result
}
