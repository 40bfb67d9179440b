// Package adminapi exposes merge-job submission and tracking over HTTP,
// modeled on the teacher's instance lifecycle manager and admin API but
// managing merge jobs instead of supervisord-managed processes.
package adminapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frozenspider/chat-history-manager-backend/config"
	"github.com/frozenspider/chat-history-manager-backend/internal/audit"
	"github.com/frozenspider/chat-history-manager-backend/internal/metrics"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/pkg/digestcache"
	"github.com/frozenspider/chat-history-manager-backend/storage/sqlite"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobState mirrors the teacher's InstanceState enum, retargeted at merge
// job lifecycle instead of supervisord process state.
type JobState string

const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// JobRequest names the two source DAOs, the dataset pair to merge, and the
// reviewed options to apply, plus where to write the result.
type JobRequest struct {
	MasterDBPath    string                  `json:"master_db_path"`
	MasterBaseDir   string                  `json:"master_base_dir"`
	MasterDatasetID model.DatasetID         `json:"master_dataset_id"`
	SlaveDBPath     string                  `json:"slave_db_path"`
	SlaveBaseDir    string                  `json:"slave_base_dir"`
	SlaveDatasetID  model.DatasetID         `json:"slave_dataset_id"`
	TargetDBPath    string                  `json:"target_db_path"`
	TargetBaseDir   string                  `json:"target_base_dir"`
	Users           []merge.UserMergeOption `json:"users"`
	Chats           []merge.ChatMergeOption `json:"chats"`
}

// Job tracks one submitted merge run. Exported fields are the ones safe to
// serialize back to a client; cancel is kept private.
type Job struct {
	ID           string           `json:"id"`
	State        JobState         `json:"state"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
	NewDatasetID *model.DatasetID `json:"new_dataset_id,omitempty"`
	Summary      *merge.Summary   `json:"summary,omitempty"`
	Error        string           `json:"error,omitempty"`

	cancel context.CancelFunc
}

// JobManager tracks every merge job submitted this process's lifetime, the
// way the teacher's LifecycleManager tracks every supervisord-managed
// instance - but in-memory, since merge jobs don't outlive the process the
// way supervisord-managed instances do.
type JobManager struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	logger *logrus.Logger
	audit  *audit.Logger
}

// NewJobManager creates a job manager.
func NewJobManager(logger *logrus.Logger) *JobManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobManager{
		jobs:   make(map[string]*Job),
		logger: logger,
		audit:  audit.NewLogger(logger),
	}
}

// Submit starts a merge job in the background and returns immediately with
// its Queued record; callers poll Get for progress.
func (jm *JobManager) Submit(req JobRequest) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		State:     JobQueued,
		CreatedAt: time.Now().UTC(),
		cancel:    cancel,
	}

	jm.mu.Lock()
	jm.jobs[job.ID] = job
	queued := *job
	jm.mu.Unlock()

	jm.audit.LogJobQueued(job.ID)
	go jm.run(ctx, job, req)
	return &queued
}

func (jm *JobManager) run(ctx context.Context, job *Job, req JobRequest) {
	jm.setState(job.ID, JobRunning, func(j *Job) {
		now := time.Now().UTC()
		j.StartedAt = &now
	})
	jm.audit.LogJobStarted(job.ID)
	metrics.SetMergesInFlight(jm.countRunning())

	started := time.Now()
	newDS, summary, err := jm.executeJob(ctx, req)
	duration := time.Since(started)

	if err != nil {
		jm.setState(job.ID, terminalState(ctx, err), func(j *Job) {
			now := time.Now().UTC()
			j.FinishedAt = &now
			j.Error = err.Error()
		})
		metrics.IncrementMergeError()
		metrics.IncrementMergeJob(string(terminalState(ctx, err)))
		jm.audit.LogJobFinished(job.ID, string(terminalState(ctx, err)), err, duration)
	} else {
		jm.setState(job.ID, JobCompleted, func(j *Job) {
			now := time.Now().UTC()
			j.FinishedAt = &now
			j.NewDatasetID = &newDS
			j.Summary = &summary
		})
		metrics.IncrementMergeJob(string(JobCompleted))
		jm.audit.LogJobFinished(job.ID, string(JobCompleted), nil, duration)
	}
	metrics.SetMergesInFlight(jm.countRunning())
}

func terminalState(ctx context.Context, err error) JobState {
	if ctx.Err() == context.Canceled {
		return JobCancelled
	}
	_ = err
	return JobFailed
}

// executeJob opens the three DAOs a merge needs, runs Analyze-reviewed
// options through usecase/merge.Merge, and closes them before returning.
func (jm *JobManager) executeJob(ctx context.Context, req JobRequest) (model.DatasetID, merge.Summary, error) {
	masterRepo, err := sqlite.Open(req.MasterDBPath, req.MasterBaseDir, jm.logger)
	if err != nil {
		return model.DatasetID{}, merge.Summary{}, fmt.Errorf("opening master dataset: %w", err)
	}
	defer masterRepo.Close()

	slaveRepo, err := sqlite.Open(req.SlaveDBPath, req.SlaveBaseDir, jm.logger)
	if err != nil {
		return model.DatasetID{}, merge.Summary{}, fmt.Errorf("opening slave dataset: %w", err)
	}
	defer slaveRepo.Close()

	targetRepo, err := sqlite.Open(req.TargetDBPath, req.TargetBaseDir, jm.logger)
	if err != nil {
		return model.DatasetID{}, merge.Summary{}, fmt.Errorf("opening target dataset: %w", err)
	}
	defer targetRepo.Close()
	targetRepo.SetBackupRetention(config.BackupRetentionCount)

	fc := digestcache.New()
	return merge.Merge(ctx, jm.logger, fc, masterRepo, req.MasterDatasetID, slaveRepo, req.SlaveDatasetID, req.Users, req.Chats, targetRepo, metricsProgress{})
}

// metricsProgress reports the same segment and file-copy counts a running
// job accumulates to Prometheus, so /metrics reflects merge activity while
// a job is still in flight rather than only after it completes.
type metricsProgress struct {
	merge.NullProgress
}

func (metricsProgress) OnSegment(segmentLabel string, count int) {
	metrics.IncrementSegmentsEmitted(segmentLabel, count)
}

func (metricsProgress) OnComplete(summary merge.Summary) {
	metrics.AddFilesCopied(summary.FilesCopied)
}

func (jm *JobManager) setState(jobID string, state JobState, mutate func(*Job)) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[jobID]
	if !ok {
		return
	}
	job.State = state
	if mutate != nil {
		mutate(job)
	}
}

func (jm *JobManager) countRunning() int {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	n := 0
	for _, j := range jm.jobs {
		if j.State == JobRunning {
			n++
		}
	}
	return n
}

// Get returns a copy of the job record, or ok=false if unknown.
func (jm *JobManager) Get(jobID string) (Job, bool) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns every tracked job, most recently created first.
func (jm *JobManager) List() []Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	out := make([]Job, 0, len(jm.jobs))
	for _, j := range jm.jobs {
		out = append(out, *j)
	}
	for i, n := 0, len(out); i < n-1; i++ {
		for k := i + 1; k < n; k++ {
			if out[k].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	return out
}

// Cancel requests cancellation of a running job. It returns false if the
// job is unknown or already in a terminal state.
func (jm *JobManager) Cancel(jobID string) bool {
	jm.mu.Lock()
	job, ok := jm.jobs[jobID]
	jm.mu.Unlock()
	if !ok || (job.State != JobRunning && job.State != JobQueued) {
		return false
	}
	job.cancel()
	return true
}
