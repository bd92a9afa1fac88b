package ports

import "context"

// Notifier defines the interface for sending notifications to external systems
type Notifier interface {
	// NotifyCriticalIOC announces a newly reported critical indicator
	NotifyCriticalIOC(ctx context.Context, ioc IOCNotification) error
}

type IOCNotification struct {
	ID         string
	Value      string
	Type       string
	Severity   string
	Confidence int
	TLP        string
	Reporter   string
	Source     string
	Tags       []string
}
