// Package notify implements the completion-notification capability used
// to resolve the "-m <address>" option left open by the original tool.
// It is a small pluggable interface rather than a hardwired mail/socket
// client, the way the restore tool treats report upload as an injected
// capability rather than an inline AWS call.
package notify

import (
	"fmt"

	"github.com/vspace/sweep/metrics"
)

// Notifier delivers a completion Report to some external address. It is
// invoked exactly once, after the sweep's workers have all joined.
type Notifier interface {
	Notify(addr string, report metrics.Report) error
}

// NoopNotifier is the default Notifier: it does nothing. It is used
// whenever no notify address was configured.
type NoopNotifier struct{}

// Notify implements Notifier by discarding the report.
func (NoopNotifier) Notify(addr string, report metrics.Report) error { return nil }

// StdoutNotifier prints the completion report to stdout, addressed by
// name. It is useful for local runs and as a reference implementation
// for real transports (email, webhook, message queue).
type StdoutNotifier struct{}

// Notify implements Notifier by printing the report.
func (StdoutNotifier) Notify(addr string, report metrics.Report) error {
	fmt.Printf("notify %s: %s\n", addr, report.String())
	return nil
}
