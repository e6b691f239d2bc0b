package filter

import (
	"context"
)

// QueueLimitConfig represents the configuration for QueueLimitFilter.
type QueueLimitConfig struct {
	MaxQueue int `yaml:"max_queue" mapstructure:"max_queue" default:"50" validate:"gte=1"`
}

// QueueLimitFilter rejects requests once the guild queue is full.
type QueueLimitFilter struct {
	config QueueLimitConfig
}

func (f *QueueLimitFilter) Name() string {
	return "queue_limit_filter"
}

func (f *QueueLimitFilter) Description() string {
	return "Rejects requests when the guild queue is full"
}

func (f *QueueLimitFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueLimitFilter) ValidateConfig(settings map[string]any) error {
	var config QueueLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = config
	return nil
}

func (f *QueueLimitFilter) Check(ctx context.Context, req Request) Result {
	if f.config.MaxQueue > 0 && len(req.Guild.Queue) >= f.config.MaxQueue {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_limit_filter", func() Filter {
		return &QueueLimitFilter{}
	})
}
