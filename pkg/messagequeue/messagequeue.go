package messagequeue

// MessageQueue publishes and consumes domain events as opaque JSON bodies,
// one durable queue per event name.
type MessageQueue interface {
	Publish(queueName string, body []byte) error
	Consume(queueName string, handler func(body []byte)) error
	Close() error
}
