package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebot/pkg/tasks"
)

func TestServerConfigsGiveEachQueueItsOwnSlot(t *testing.T) {
	configs := ServerConfigs()
	require.Len(t, configs, 2)

	seen := make(map[string]bool)
	for _, c := range configs {
		assert.Equal(t, 1, c.Concurrency)
		require.Len(t, c.Queues, 1)
		for q := range c.Queues {
			seen[q] = true
		}
	}
	assert.True(t, seen[tasks.QueueDefault])
	assert.True(t, seen[tasks.QueueExport])
}

func TestRetryDelay(t *testing.T) {
	task := tasks.NewNotifyTickTask()
	assert.Equal(t, 30*time.Second, retryDelay(0, nil, task))
	assert.Equal(t, 60*time.Second, retryDelay(1, nil, task))
	assert.Equal(t, 16*time.Minute, retryDelay(10, nil, task))
}
