package telemetry

// Registry metrics
var (
	// ClientsConnected tracks clients currently registered with the hub
	ClientsConnected Gauge = NoopStat{}

	// Subscriptions tracks active subscriptions by kind (literal, pattern)
	Subscriptions GaugeVec = noopGaugeVec{}

	// PublishesTotal counts publish calls
	PublishesTotal Counter = NoopStat{}

	// DeliveriesTotal counts messages handed to client Send
	DeliveriesTotal Counter = NoopStat{}

	// DroppedDeliveriesTotal counts messages a client dropped (full buffer, write failure)
	DroppedDeliveriesTotal Counter = NoopStat{}

	// RegistryErrorsTotal counts rejected operations by op (subscribe, unsubscribe, connect) and error kind
	RegistryErrorsTotal CounterVec = noopCounterVec{}
)
