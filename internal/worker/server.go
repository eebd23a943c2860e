package worker

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"voicebot/pkg/tasks"
)

// ServerConfigs returns one single-slot server per queue. Ticks and exports
// never wait on each other, and one tick at a time keeps reminders within the
// Bot API send limits.
func ServerConfigs() []asynq.Config {
	return []asynq.Config{
		serverConfig(tasks.QueueDefault),
		serverConfig(tasks.QueueExport),
	}
}

func serverConfig(queue string) asynq.Config {
	return asynq.Config{
		Concurrency:    1,
		Queues:         map[string]int{queue: 1},
		RetryDelayFunc: retryDelay,
	}
}

// retryDelay doubles from 30s and stops growing once past 10 minutes.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := 30 * time.Second
	for i := 0; i < n && delay < 10*time.Minute; i++ {
		delay *= 2
	}
	log.Warn().Str("task", task.Type()).Int("attempt", n+1).Dur("delay", delay).Msg("Task failed, retrying")
	return delay
}
