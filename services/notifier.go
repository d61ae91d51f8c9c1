package services

// Notifier pushes order events to live subscribers (the admin feed).
type Notifier interface {
	Broadcast(event string, data interface{})
}

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
)

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, interface{}) {}
