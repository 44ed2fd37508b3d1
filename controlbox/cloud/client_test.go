package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/strategy"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *mediator.Queue) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	queue := mediator.NewQueue()
	c := New(server.URL, "CB-1", "TMC-1", queue)
	c.Breaker = NewCircuitBreaker(10 * time.Millisecond)
	return c, queue
}

func TestRequestConfigurationPostsBothDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/p_semaphore/tmcid/TMC-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"PS1"}]`))
	})
	mux.HandleFunc("/data/t_semaphore/tmcid/TMC-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"TS1"}]`))
	})
	c, queue := newTestClient(t, mux)

	c.RequestConfiguration()

	seen := map[mediator.CloudResponseKind]bool{}
	for i := 0; i < 2; i++ {
		ev, ok := queue.Pop()
		if !ok {
			t.Fatalf("queue closed before both documents arrived")
		}
		if ev.Kind != mediator.KindCloudResponse {
			t.Fatalf("expected CloudResponse event, got kind %v", ev.Kind)
		}
		seen[ev.CloudResponse] = true
	}
	if !seen[mediator.PSEMConfig] || !seen[mediator.TSEMConfig] {
		t.Fatalf("expected both PSEMConfig and TSEMConfig events, got %v", seen)
	}
}

func TestValidateRFIDFoundMarksCardUsed(t *testing.T) {
	var patchCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/data/rfid_card/uuid/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"uuid":42,"location":1}]`))
	})
	mux.HandleFunc("/data/rfid_card", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		atomic.AddInt32(&patchCalls, 1)
	})
	c, queue := newTestClient(t, mux)

	c.ValidateRFID(1, 42)

	ev, ok := queue.Pop()
	if !ok {
		t.Fatalf("queue closed before RFID validation replied")
	}
	if ev.Kind != mediator.KindCloudResponse || ev.CloudResponse != mediator.RFIDValidation {
		t.Fatalf("expected RFIDValidation event, got %+v", ev)
	}
	if !ev.CloudRFIDValid {
		t.Fatalf("expected a valid scan")
	}
	if ev.CloudRFIDLocation != 1 {
		t.Fatalf("expected location 1, got %d", ev.CloudRFIDLocation)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&patchCalls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&patchCalls) == 0 {
		t.Fatalf("expected the matched card to be marked used via PATCH")
	}
}

func TestValidateRFIDNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/rfid_card/uuid/99", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"found":false}`))
	})
	c, queue := newTestClient(t, mux)

	c.ValidateRFID(3, 99)

	ev, ok := queue.Pop()
	if !ok {
		t.Fatalf("queue closed before RFID validation replied")
	}
	if ev.CloudRFIDValid {
		t.Fatalf("expected an invalid scan")
	}
}

func TestReportEmergencyPostsAuditRecord(t *testing.T) {
	received := make(chan map[string]any, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/data/emergencyvehicle", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		received <- body
	})
	c, _ := newTestClient(t, mux)

	c.ReportEmergency(strategy.EmergencyRecord{
		Plate: "ABC123", Origin: 2, Destination: 6, Priority: 1, Timestamp: time.Now(),
	})

	select {
	case body := <-received:
		if body["licenseplate"] != "ABC123" {
			t.Fatalf("expected licenseplate ABC123, got %v", body["licenseplate"])
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for emergency report")
	}
}

// TestWithRetryRespectsContextCancellation confirms the back-off wait
// between attempts is abandoned the moment the caller's context is done,
// without waiting out a real 5s backoff.
func TestWithRetryRespectsContextCancellation(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := c.withRetry(ctx, "probe", func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt before the cancelled context aborted retries, got %d", attempts)
	}
}

// TestWithRetryOpensCircuitOnPersistentFailure drives the retry loop to
// exhaustion with an always-failing call and confirms the breaker opens and
// subsequently rejects calls until its cooldown elapses. retryBackoff is
// shrunk for the duration of the test so the three attempts don't take 10s
// of real wall-clock time.
func TestWithRetryOpensCircuitOnPersistentFailure(t *testing.T) {
	original := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = original })

	c, _ := newTestClient(t, http.NotFoundHandler())

	attempts := 0
	err := c.withRetry(context.Background(), "probe", func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("boom")
	})

	if err == nil {
		t.Fatalf("expected a persistent failure error")
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
	if c.Breaker.State() != CircuitOpen {
		t.Fatalf("expected the circuit to be open after a persistent failure, got %v", c.Breaker.State())
	}
	if c.Breaker.Allow() {
		t.Fatalf("expected the open circuit to reject an immediate retry")
	}
}
