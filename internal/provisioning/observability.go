package provisioning

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// Logger is the minimal printf-style logging interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Observer defines the interface for structured observability during a run.
// Implementations must be safe for concurrent use; the executor reports
// outcomes from several goroutines.
type Observer interface {
	Logger

	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured event. Fields must never carry secrets.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "provisioning", "gitops")
	Message   string            // Human-readable message
	Resource  string            // Resource name/ID if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"

	EventResourceUnchanged EventType = "resource.unchanged"
	EventResourceChanged   EventType = "resource.changed"
	EventResourceSkipped   EventType = "resource.skipped"
	EventResourceConflict  EventType = "resource.conflict"
	EventResourceWarning   EventType = "resource.warning"
	EventResourceFailed    EventType = "resource.failed"

	EventValidationWarning EventType = "validation.warning"

	EventProgress EventType = "progress"
)

var outcomeEvents = map[reconcile.Status]EventType{
	reconcile.StatusUnchanged: EventResourceUnchanged,
	reconcile.StatusChanged:   EventResourceChanged,
	reconcile.StatusSkipped:   EventResourceSkipped,
	reconcile.StatusConflict:  EventResourceConflict,
	reconcile.StatusWarning:   EventResourceWarning,
	reconcile.StatusFailed:    EventResourceFailed,
}

// ConsoleObserver implements Observer using standard log package.
type ConsoleObserver struct {
	contextFields map[string]string
}

// NewConsoleObserver creates a new console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{
		contextFields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Event implements Observer interface.
func (o *ConsoleObserver) Event(event Event) {
	log.Print(o.formatEvent(event))
}

// Progress implements Observer interface.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	if total == 0 {
		log.Printf("[%s] Progress: %d/%d", phase, current, total)
		return
	}
	percentage := (current * 100) / total
	log.Printf("[%s] Progress: %d/%d (%d%%)", phase, current, total, percentage)
}

// WithFields implements Observer interface.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	return &ConsoleObserver{contextFields: mergeFields(o.contextFields, fields)}
}

// formatEvent formats an event for console output. Fields are sorted so
// identical events print identically.
func (o *ConsoleObserver) formatEvent(event Event) string {
	parts := []string{string(event.Type)}
	if event.Phase != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Phase))
	}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	if event.Message != "" {
		parts = append(parts, event.Message)
	}

	fields := mergeFields(o.contextFields, event.Fields)
	if len(fields) > 0 {
		var fieldParts []string
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, fields[k]))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}

// LogrObserver implements Observer on top of a logr.Logger.
type LogrObserver struct {
	logger logr.Logger
}

// NewLogrObserver creates an observer writing through logger.
func NewLogrObserver(logger logr.Logger) *LogrObserver {
	return &LogrObserver{logger: logger}
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...any) {
	o.logger.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer. Failed and warning events are logged as
// errors; everything else at info level.
func (o *LogrObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	for _, k := range slices.Sorted(maps.Keys(event.Fields)) {
		kv = append(kv, k, event.Fields[k])
	}

	switch event.Type {
	case EventPhaseFailed, EventResourceFailed, EventResourceWarning:
		o.logger.Error(nil, event.Message, kv...)
	case EventResourceUnchanged:
		o.logger.V(1).Info(event.Message, kv...)
	default:
		o.logger.Info(event.Message, kv...)
	}
}

// Progress implements Observer.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.logger.V(1).Info("progress", "phase", phase, "current", current, "total", total)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	kv := make([]any, 0, 2*len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kv = append(kv, k, fields[k])
	}
	return &LogrObserver{logger: o.logger.WithValues(kv...)}
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogValidationWarning logs a non-fatal problem found before any change.
func LogValidationWarning(observer Observer, phase, message string) {
	observer.Event(Event{
		Type:    EventValidationWarning,
		Phase:   phase,
		Message: message,
	})
}

// LogOutcome logs the result of one reconcile action.
func LogOutcome(observer Observer, o reconcile.Outcome) {
	fields := map[string]string{
		"kind":   o.Kind,
		"target": o.Target,
		"action": string(o.Action),
	}
	if o.Subsystem != "" {
		fields["subsystem"] = o.Subsystem
	}
	if o.Duration > 0 {
		fields["duration"] = o.Duration.Round(time.Millisecond).String()
	}
	resource := o.Name
	if resource == "" {
		resource = o.Target
	}
	observer.Event(Event{
		Type:     outcomeEvents[o.Status],
		Phase:    o.Phase,
		Resource: resource,
		Message:  o.Message,
		Fields:   fields,
	})
}
