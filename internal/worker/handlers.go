package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"voicebot/internal/export"
	"voicebot/internal/notifier"
	"voicebot/pkg/tasks"
)

// Ticker runs one notification round.
type Ticker interface {
	Tick(ctx context.Context) (notifier.TickResult, error)
}

// Deliverer builds an export and sends it to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, lang string) (export.Result, error)
}

type TaskHandler struct {
	notifier Ticker
	exporter Deliverer
}

func NewTaskHandler(n Ticker, e Deliverer) *TaskHandler {
	return &TaskHandler{notifier: n, exporter: e}
}

// Register wires every task type this worker serves into mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeNotifyTick, h.HandleNotifyTickTask)
	mux.HandleFunc(tasks.TypeExportBuild, h.HandleExportBuildTask)
}

func (h *TaskHandler) HandleNotifyTickTask(ctx context.Context, t *asynq.Task) error {
	res, err := h.notifier.Tick(ctx)
	if err != nil {
		return fmt.Errorf("notify tick: %w", err)
	}
	if res.Skipped {
		log.Debug().Msg("Notifications disabled, tick skipped")
		return nil
	}
	if res.Failed > 0 {
		log.Warn().Int("failed", res.Failed).Msg("Some reminders were not delivered, they will be retried")
	}
	return nil
}

func (h *TaskHandler) HandleExportBuildTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ExportBuildTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Info().Int64("chat_id", p.ChatID).Msg("Building export")
	if _, err := h.exporter.Deliver(ctx, p.ChatID, p.Language); err != nil {
		if errors.Is(err, export.ErrEmpty) {
			return nil
		}
		// The requester was already told; a retry would only repeat the message.
		return fmt.Errorf("export for chat %d: %v: %w", p.ChatID, err, asynq.SkipRetry)
	}
	return nil
}
