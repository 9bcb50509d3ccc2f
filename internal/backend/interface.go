// Package backend opens the change-event transport selected by
// configuration. The API publishes on it; snapshot keepers subscribe to it.
package backend

import (
	"context"

	"kharcha/internal/notify"
	"kharcha/internal/worker"
)

// Transport both announces and delivers change events.
type Transport interface {
	notify.Publisher
	notify.Source
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is an opened transport.
type Result struct {
	Transport Transport
	// Shared is true when other processes receive the events too. A memory
	// hub is visible only inside the process that created it.
	Shared bool
	// Locker is set when the backend can grant locks across processes.
	Locker  worker.Locker
	Cleanup CleanupFunc
}

// Factory creates transports based on configuration
type Factory interface {
	Open(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for transport creation
type Config struct {
	Type BackendType

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// Consumer names the subscribing process. It suffixes a durable
	// AMQPQueue so the API and the worker each receive every event.
	Consumer string

	RedisURL     string
	RedisChannel string
}

type BackendType string

const (
	MemoryBackend BackendType = "memory"
	AMQPBackend   BackendType = "amqp"
	RedisBackend  BackendType = "redis"
)

func (t BackendType) IsValid() bool {
	switch t {
	case MemoryBackend, AMQPBackend, RedisBackend:
		return true
	}
	return false
}

func (t BackendType) String() string {
	return string(t)
}
