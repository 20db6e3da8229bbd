package provisioning

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// recordingObserver is a test Observer that keeps every event.
type recordingObserver struct {
	mu       sync.Mutex
	events   []Event
	messages []string
}

func (r *recordingObserver) Printf(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, fmt.Sprintf(format, v...))
}

func (r *recordingObserver) Event(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) Progress(phase string, current, total int) {
	r.Event(Event{Type: EventProgress, Phase: phase, Message: fmt.Sprintf("%d/%d", current, total)})
}

func (r *recordingObserver) WithFields(map[string]string) Observer { return r }

func (r *recordingObserver) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func TestConsoleObserver_FormatEvent(t *testing.T) {
	t.Parallel()

	obs := NewConsoleObserver().WithFields(map[string]string{"cluster": "lab"}).(*ConsoleObserver)
	got := obs.formatEvent(Event{
		Type:     EventResourceChanged,
		Phase:    "os-prep",
		Resource: "cp-1",
		Message:  "installed",
		Fields:   map[string]string{"kind": "Package", "action": "create"},
	})

	assert.Equal(t, "resource.changed [os-prep] resource=cp-1 installed (action=create, cluster=lab, kind=Package)", got)
}

func TestConsoleObserver_WithFieldsDoesNotMutateParent(t *testing.T) {
	t.Parallel()

	parent := NewConsoleObserver()
	_ = parent.WithFields(map[string]string{"a": "1"})

	assert.Empty(t, parent.contextFields)
}

func TestLogOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status reconcile.Status
		want   EventType
	}{
		{reconcile.StatusUnchanged, EventResourceUnchanged},
		{reconcile.StatusChanged, EventResourceChanged},
		{reconcile.StatusSkipped, EventResourceSkipped},
		{reconcile.StatusConflict, EventResourceConflict},
		{reconcile.StatusWarning, EventResourceWarning},
		{reconcile.StatusFailed, EventResourceFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			obs := &recordingObserver{}
			LogOutcome(obs, reconcile.Outcome{
				Phase:     "storage-gpu",
				Kind:      "Chart",
				Target:    "storage",
				Name:      "nfs-subdir-external-provisioner",
				Action:    reconcile.ActionCreate,
				Status:    tt.status,
				Subsystem: "storage",
				Duration:  1500 * time.Millisecond,
			})

			require.Len(t, obs.events, 1)
			e := obs.events[0]
			assert.Equal(t, tt.want, e.Type)
			assert.Equal(t, "nfs-subdir-external-provisioner", e.Resource)
			assert.Equal(t, "storage", e.Fields["subsystem"])
			assert.Equal(t, "1.5s", e.Fields["duration"])
		})
	}
}

func TestLogOutcome_FallsBackToTarget(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	LogOutcome(obs, reconcile.Outcome{Kind: "Swap", Target: "w-1", Status: reconcile.StatusUnchanged})

	require.Len(t, obs.events, 1)
	assert.Equal(t, "w-1", obs.events[0].Resource)
	assert.NotContains(t, obs.events[0].Fields, "subsystem")
}

func TestLogrObserver(t *testing.T) {
	t.Parallel()

	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{Verbosity: 1})

	obs := NewLogrObserver(logger).WithFields(map[string]string{"cluster": "lab"})
	obs.Event(Event{Type: EventPhaseStarted, Phase: "network", Message: "starting"})
	obs.Event(Event{Type: EventResourceFailed, Resource: "cilium", Message: "boom"})
	obs.Printf("hello %s", "world")

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"cluster"="lab"`)
	assert.Contains(t, lines[0], `"phase"="network"`)
	assert.Contains(t, lines[1], `"msg"="boom"`)
	assert.Contains(t, lines[1], `"resource"="cilium"`)
	assert.Contains(t, lines[2], `"msg"="hello world"`)
}

func TestLogrObserver_UnchangedIsVerbose(t *testing.T) {
	t.Parallel()

	var lines []string
	logger := funcr.New(func(_, args string) {
		lines = append(lines, args)
	}, funcr.Options{})

	NewLogrObserver(logger).Event(Event{Type: EventResourceUnchanged, Resource: "cp-1"})

	assert.Empty(t, lines)
}
