package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-aging/internal/profile"
	"github.com/odyssey-erp/odyssey-aging/jobs"
)

// Enqueuer submits tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector reads queue state; *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers against the given Redis connection.
func NewJobsCLI(redisOpt asynq.RedisClientOpt) *JobsCLI {
	client := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// EnqueueOptions defines the flags of the jobs enqueue command.
type EnqueueOptions struct {
	Task string
	ProfileFlags
	Stdout io.Writer
	Stderr io.Writer
}

// Trigger builds and enqueues a supported task. Report tasks take their
// payload from the resolved profile.
func (c *JobsCLI) Trigger(ctx context.Context, name string, flags ProfileFlags) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	switch name {
	case jobs.TaskAgingReportGenerate:
		p, err := resolveProfile(flags)
		if err != nil {
			return nil, err
		}
		if p.Source == "" {
			p.Source = profile.SourceFolder
		}
		if err := validateForQueue(p.Source, p.Folder); err != nil {
			return nil, err
		}
		task, err = jobs.NewAgingReportTask(p)
		if err != nil {
			return nil, err
		}
	case jobs.TaskAgingCacheInvalidate:
		task = jobs.NewAgingCacheInvalidateTask()
	case jobs.TaskAgingLedgerRefresh:
		task = jobs.NewLedgerRefreshTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	return c.client.EnqueueContext(ctx, task)
}

func validateForQueue(source, folder string) error {
	if source == profile.SourceFolder && folder == "" {
		return errors.New("jobs cli: --folder is required for folder reports")
	}
	if source == profile.SourceUpload {
		return errors.New("jobs cli: uploads cannot be queued")
	}
	return nil
}

// EnqueueCommand enqueues a task and prints its id.
func (c *JobsCLI) EnqueueCommand(ctx context.Context, opts EnqueueOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	info, err := c.Trigger(ctx, opts.Task, opts.ProfileFlags)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs enqueue: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return ExitOK
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the metrics of one queue.
func (c *JobsCLI) InspectQueue(queue string) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if queue == "" {
		queue = jobs.QueueReports
	}
	info, err := c.inspector.GetQueueInfo(queue)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: queue}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// StatsCommand prints queue statistics.
func (c *JobsCLI) StatsCommand(queue string, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	stats, err := c.InspectQueue(queue)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return ExitOK
}
