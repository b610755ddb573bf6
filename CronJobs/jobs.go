package CronJobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"Anvil/Models"
	"Anvil/Tasks"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DigestCaller is the identity the digest reads the sheets as.
var DigestCaller = Models.RoleContext{Role: Models.RoleAdmin, Username: "digest"}

// RecordLoader returns the records visible to a caller.
type RecordLoader interface {
	Load(ctx context.Context, caller Models.RoleContext) (Tasks.LoadResult, error)
}

// DigestPoster publishes a rendered digest.
type DigestPoster interface {
	PostDigest(ctx context.Context, message string) error
}

// MachineProgress is the completion state of every task on one machine.
type MachineProgress struct {
	Machine   string
	Active    int
	Completed int
	Percent   int
}

// Digest is one run's result.
type Digest struct {
	Machines    []MachineProgress
	Degraded    bool
	GeneratedAt time.Time
}

// BuildDigest groups records by machine name and partitions each group.
// Machines with the lowest progress come first.
func BuildDigest(records []Models.TaskRecord) []MachineProgress {
	order := []string{}
	names := map[string]string{}
	groups := map[string][]Models.TaskRecord{}
	for _, r := range records {
		name := strings.TrimSpace(r.MachineName)
		if name == "" {
			name = "Unassigned"
		}
		key := strings.ToLower(name)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			names[key] = name
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]MachineProgress, 0, len(order))
	for _, key := range order {
		view := Tasks.Partition(groups[key])
		out = append(out, MachineProgress{
			Machine:   names[key],
			Active:    len(view.Active),
			Completed: len(view.Completed),
			Percent:   view.ProgressPercent,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent < out[j].Percent
		}
		return out[i].Machine < out[j].Machine
	})
	return out
}

// Message renders the digest for Slack.
func (d Digest) Message() string {
	var b strings.Builder
	b.WriteString("*🛠 Maintenance digest*\n")
	if len(d.Machines) == 0 {
		b.WriteString("No tasks found.\n")
	}
	for _, m := range d.Machines {
		fmt.Fprintf(&b, "• *%s*: %d%% (%d done, %d open)\n", m.Machine, m.Percent, m.Completed, m.Active)
	}
	if d.Degraded {
		b.WriteString("⚠️ Some task sheets could not be read; figures may be incomplete.\n")
	}
	fmt.Fprintf(&b, "_Generated %s_", d.GeneratedAt.Format("2006-01-02 15:04"))
	return b.String()
}

// DigestJob posts the per-machine progress digest on a cron schedule.
type DigestJob struct {
	cronScheduler *cron.Cron
	loader        RecordLoader
	poster        DigestPoster
	logger        *zap.Logger
	timeout       time.Duration
	now           func() time.Time

	mu       sync.Mutex
	schedule string
	jobID    cron.EntryID
}

// NewDigestJob creates a job; schedule uses six fields with leading seconds.
func NewDigestJob(loader RecordLoader, poster DigestPoster, schedule string, timeout time.Duration, logger *zap.Logger) *DigestJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &DigestJob{
		cronScheduler: cron.New(cron.WithSeconds()),
		loader:        loader,
		poster:        poster,
		logger:        logger,
		timeout:       timeout,
		now:           time.Now,
		schedule:      schedule,
	}
}

// Start schedules the digest and starts the scheduler.
func (j *DigestJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	id, err := j.cronScheduler.AddFunc(j.schedule, j.runScheduled)
	if err != nil {
		return fmt.Errorf("error scheduling digest job: %w", err)
	}
	j.jobID = id
	j.cronScheduler.Start()
	j.logger.Info("Digest scheduler started", zap.String("schedule", j.schedule))
	return nil
}

// Stop terminates the scheduler and waits for a running digest to finish.
func (j *DigestJob) Stop() {
	<-j.cronScheduler.Stop().Done()
	j.logger.Info("Digest scheduler stopped")
}

// Schedule returns the active cron spec.
func (j *DigestJob) Schedule() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.schedule
}

// UpdateSchedule changes the schedule of the digest. An unchanged spec is a no-op.
func (j *DigestJob) UpdateSchedule(schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if schedule == j.schedule && j.jobID != 0 {
		return nil
	}
	id, err := j.cronScheduler.AddFunc(schedule, j.runScheduled)
	if err != nil {
		return fmt.Errorf("error updating schedule: %w", err)
	}
	j.cronScheduler.Remove(j.jobID)
	j.jobID = id
	j.schedule = schedule
	j.logger.Info("Digest schedule updated", zap.String("schedule", schedule))
	return nil
}

func (j *DigestJob) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("Digest run failed", zap.Error(err))
	}
}

// RunOnce loads every task as an admin, builds the digest and posts it.
func (j *DigestJob) RunOnce(ctx context.Context) (Digest, error) {
	loaded, err := j.loader.Load(ctx, DigestCaller)
	if err != nil {
		return Digest{}, fmt.Errorf("error loading tasks: %w", err)
	}

	digest := Digest{
		Machines:    BuildDigest(loaded.Records),
		Degraded:    loaded.Degraded,
		GeneratedAt: j.now(),
	}
	if j.poster != nil {
		if err := j.poster.PostDigest(ctx, digest.Message()); err != nil {
			return digest, err
		}
	}
	j.logger.Info("Digest completed",
		zap.Int("machines", len(digest.Machines)),
		zap.Bool("degraded", digest.Degraded))
	return digest, nil
}
