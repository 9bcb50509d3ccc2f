package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kharcha/internal/amqp"
	"kharcha/internal/log"
	"kharcha/internal/notify"
	"kharcha/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// Open implements Factory.Open
func (f *DefaultFactory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case AMQPBackend:
		return f.openAMQP(config)
	case RedisBackend:
		return f.openRedis(ctx, config)
	case MemoryBackend:
		return f.openMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openAMQP(config Config) (*Result, error) {
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.QueueName())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Change events via AMQP",
		log.FieldComponent, log.ComponentAMQP,
		"exchange", config.AMQPExchange,
		"queue", config.QueueName())
	return &Result{
		Transport: client,
		Shared:    true,
		Cleanup:   client.Close,
	}, nil
}

func (f *DefaultFactory) openRedis(ctx context.Context, config Config) (*Result, error) {
	bus, err := notify.NewRedisBus(ctx, config.RedisURL, config.RedisChannel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis bus: %w", err)
	}
	f.logger.Info("Change events via Redis", "channel", config.RedisChannel)
	return &Result{
		Transport: bus,
		Shared:    true,
		Locker:    worker.NewRedisLocker(bus.Client()),
		Cleanup:   bus.Close,
	}, nil
}

func (f *DefaultFactory) openMemory() *Result {
	f.logger.Info("Change events via in-process hub")
	return &Result{
		Transport: notify.NewHub(),
		Cleanup:   func() error { return nil },
	}
}
