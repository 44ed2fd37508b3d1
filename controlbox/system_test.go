package controlbox

import (
	"sync"
	"testing"
	"time"

	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
	"github.com/andrem20/allways-safe/controlbox/strategy"
)

// systemFakeCloud answers SET_UP's configuration request with Scenario 1's
// two-way intersection fixture (spec.md §8) the moment RequestConfiguration
// is called, so a test can drive the whole SET_UP -> NORMAL boot sequence
// without a real HTTP collaborator.
type systemFakeCloud struct {
	queue *mediator.Queue

	mu          sync.Mutex
	emergencies []strategy.EmergencyRecord
}

func (f *systemFakeCloud) Ping() error { return nil }

func (f *systemFakeCloud) RequestConfiguration() {
	tsem := []byte(`[
		{"name":"TS1","location":0,"destinations":[4],"gpio_red":1,"gpio_green":2,"gpio_yellow":3},
		{"name":"TS2","location":2,"destinations":[6],"gpio_red":4,"gpio_green":5,"gpio_yellow":6},
		{"name":"TS3","location":4,"destinations":[0],"gpio_red":7,"gpio_green":13,"gpio_yellow":14},
		{"name":"TS4","location":6,"destinations":[2],"gpio_red":15,"gpio_green":16,"gpio_yellow":17}
	]`)
	f.queue.Push(mediator.Event{Kind: mediator.KindCloudResponse, CloudResponse: mediator.PSEMConfig, CloudConfigJSON: []byte(`[]`)})
	f.queue.Push(mediator.Event{Kind: mediator.KindCloudResponse, CloudResponse: mediator.TSEMConfig, CloudConfigJSON: tsem})
}

func (f *systemFakeCloud) ValidateRFID(location int, uuid uint32) {}

func (f *systemFakeCloud) ReportEmergency(rec strategy.EmergencyRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emergencies = append(f.emergencies, rec)
}

func (f *systemFakeCloud) LogPedestrianCrossing(location int) {}

func TestSystemBootsThroughSetUpIntoPlannedPhases(t *testing.T) {
	queue := mediator.NewQueue()
	cloud := &systemFakeCloud{queue: queue}
	writer := semaphore.NewSimulatedLines()

	sys := New(writer, queue, cloud)
	defer sys.Shutdown()

	go sys.Run(sys.ctx)
	cloud.RequestConfiguration()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sys.Snapshot().PhaseCount == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	snap := sys.Snapshot()
	if snap.PhaseCount != 2 {
		t.Fatalf("expected the planner to produce 2 phases for Scenario 1's layout, got %d", snap.PhaseCount)
	}
}

func TestSystemSnapshotBeforeConfigurationReportsSetUp(t *testing.T) {
	queue := mediator.NewQueue()
	cloud := &systemFakeCloud{queue: queue}
	writer := semaphore.NewSimulatedLines()

	sys := New(writer, queue, cloud)
	defer sys.Shutdown()

	snap := sys.Snapshot()
	if snap.State != "SET_UP" {
		t.Fatalf("expected SET_UP before configuration completes, got %q", snap.State)
	}
}
