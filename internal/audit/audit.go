// Package audit logs one structured line per merge job transition, for
// operators reconstructing what a run did. LogDecision writes one line per
// merge decision, but the merge path does not call it, so a run's audit
// trail holds its job transitions only.
package audit

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Entry represents one audit log entry for a merge job or decision.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	JobID     string `json:"job_id,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Logger writes structured audit entries via logrus.
type Logger struct {
	logger *logrus.Logger
}

// NewLogger creates an audit Logger.
func NewLogger(logger *logrus.Logger) *Logger {
	return &Logger{logger: logger}
}

// LogOperation logs a job-level operation with structured audit data.
func (a *Logger) LogOperation(action, jobID, result string, err error, duration time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Action:    action,
		JobID:     jobID,
		Result:    result,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if duration > 0 {
		entry.Duration = duration.String()
	}

	a.logger.WithFields(logrus.Fields{
		"audit":     true,
		"timestamp": entry.Timestamp,
		"action":    entry.Action,
		"job_id":    entry.JobID,
		"result":    entry.Result,
		"error":     entry.Error,
		"duration":  entry.Duration,
	}).Info("audit event")
}

// LogDecision logs one applied MessagesMergeDecision for a chat.
func (a *Logger) LogDecision(jobID string, chatID int64, decisionLabel string) {
	a.logger.WithFields(logrus.Fields{
		"audit":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"action":    "apply_decision",
		"job_id":    jobID,
		"chat_id":   chatID,
		"decision":  decisionLabel,
	}).Info("audit event")
}

// LogJobQueued logs a merge job entering the Queued state.
func (a *Logger) LogJobQueued(jobID string) {
	a.LogOperation("queue", jobID, "queued", nil, 0)
}

// LogJobStarted logs a merge job entering the Running state.
func (a *Logger) LogJobStarted(jobID string) {
	a.LogOperation("start", jobID, "running", nil, 0)
}

// LogJobFinished logs a merge job reaching a terminal state.
func (a *Logger) LogJobFinished(jobID, result string, err error, duration time.Duration) {
	a.LogOperation("finish", jobID, result, err, duration)
}
