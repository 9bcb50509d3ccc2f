package backend

import (
	"fmt"

	"kharcha/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.NotifyBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.NotifyBackend)
	}

	return Config{
		Type:         backendType,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		RedisURL:     appConfig.RedisURL,
		RedisChannel: appConfig.RedisChannel,
	}, nil
}

// QueueName is the durable AMQP queue for this process, or "" for an
// exclusive queue that is deleted with the connection.
func (c Config) QueueName() string {
	if c.AMQPQueue == "" || c.Consumer == "" {
		return c.AMQPQueue
	}
	return c.AMQPQueue + "." + c.Consumer
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case AMQPBackend:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP URL is required for amqp backend")
		}
		if c.AMQPExchange == "" {
			return fmt.Errorf("AMQP exchange is required for amqp backend")
		}
	case RedisBackend:
		if c.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for redis backend")
		}
		if c.RedisChannel == "" {
			return fmt.Errorf("Redis channel is required for redis backend")
		}
	case MemoryBackend:
		// nothing to configure
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, AMQPBackend, RedisBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
