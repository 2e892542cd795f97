package brokers

import "rul-pipeline/internal/common/registry"

// Registry holds the broker factories.
type Registry = registry.Registry[BrokerConfig, Broker]

// NewRegistry creates an empty broker registry.
func NewRegistry() *Registry {
	return registry.New[BrokerConfig, Broker]("broker")
}

// DefaultRegistry receives the brokers compiled into the binary.
var DefaultRegistry = NewRegistry()

func Register(brokerType string, factory BrokerFactory) {
	DefaultRegistry.Register(brokerType, factory)
}

// Create validates config and connects the named broker.
func Create(brokerType string, config BrokerConfig) (Broker, error) {
	return DefaultRegistry.Create(brokerType, config)
}
