// Package notify is the user-facing notification surface for long-running
// operations. Producers hold a Notifier; what the notifications look like
// (server log, API event stream) is the implementation's business.
package notify

import "log"

// Notifier publishes operation lifecycle notifications. Loading returns a
// dismiss function; callers must dismiss the loading notification before
// publishing the terminal one so at most one notification is live per
// operation.
type Notifier interface {
	Loading(message string) (dismiss func())
	Success(message string)
	Error(message string)
	Denied(reason, message string)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

// NewLogNotifier returns a Notifier backed by the standard logger.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Loading(message string) func() {
	log.Printf("notify: loading: %s", message)
	return func() {
		log.Printf("notify: dismissed: %s", message)
	}
}

func (n *LogNotifier) Success(message string) {
	log.Printf("notify: success: %s", message)
}

func (n *LogNotifier) Error(message string) {
	log.Printf("notify: error: %s", message)
}

func (n *LogNotifier) Denied(reason, message string) {
	log.Printf("notify: denied (%s): %s", reason, message)
}
