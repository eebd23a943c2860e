package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeNotifyTick  = "notify:tick"
	TypeExportBuild = "export:build"
)

const (
	// QueueDefault carries the notify ticks.
	QueueDefault = "default"
	// QueueExport carries archive builds, served by their own worker slot
	// so a long export never holds back a tick.
	QueueExport = "export"
)

const exportTimeout = 30 * time.Minute

// NewNotifyTickTask builds the periodic reminder task. It carries no payload:
// every tick re-reads the eligible set from the database.
func NewNotifyTickTask() *asynq.Task {
	return asynq.NewTask(TypeNotifyTick, nil)
}

// NotifyTickOptions keeps at most one tick queued per period and never retries,
// since the next tick picks up whatever this one missed. The timeout is independent
// of the period: a tick may run longer than the gap between two ticks.
func NotifyTickOptions(period, timeout time.Duration) []asynq.Option {
	if period <= 0 {
		period = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.Unique(period),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	}
}

type ExportBuildTaskPayload struct {
	ChatID   int64
	Language string
}

func NewExportBuildTask(chatID int64, language string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExportBuildTaskPayload{ChatID: chatID, Language: language})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportBuild, payload), nil
}

// ExportBuildOptions routes exports to QueueExport. The requester is told about
// failures, so a retry would only repeat the message.
func ExportBuildOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueExport),
		asynq.MaxRetry(0),
		asynq.Timeout(exportTimeout),
	}
}
