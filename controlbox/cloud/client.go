// Package cloud implements the outbound HTTP collaborator for the
// management service (spec.md §6.1): SET_UP's configuration fetch, RFID
// card validation, and the emergency/pedestrian audit posts. Client
// satisfies strategy.CloudClient; apart from the synchronous boot-time Ping,
// every call is fire-and-forget from the caller's perspective — the reply
// (if any) arrives later as a mediator.Event.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/observability"
	"github.com/andrem20/allways-safe/controlbox/strategy"
)

const (
	maxAttempts = 3
	callTimeout = 10 * time.Second
)

// retryBackoff is the fixed wait between retry attempts (§7: "retried 3x
// with 5s back-off"). It is a var, not a const, purely so tests can shrink
// it; production always runs with the 5s default.
var retryBackoff = 5 * time.Second

// transientError wraps a failed attempt; it is always retried up to
// maxAttempts before becoming persistent (§7 CloudTransientError).
type transientError struct {
	op  string
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("cloud: %s: %v", e.op, e.err) }
func (e *transientError) Unwrap() error { return e.err }

// Client is the management-service collaborator. It owns no state beyond
// its HTTP transport, rate limiter and circuit breaker; every reply is
// delivered asynchronously by pushing a mediator.Event onto Queue.
type Client struct {
	BaseURL      string
	ControlBoxID string
	TMCID        string

	HTTP    *http.Client
	Queue   *mediator.Queue
	Limiter *RateLimiter
	Breaker *CircuitBreaker
}

// New builds a Client with production defaults: a 10s-per-attempt HTTP
// client, a 1 req/s (burst 3) per-endpoint rate limit, and a 30s circuit
// cooldown.
func New(baseURL, controlBoxID, tmcID string, queue *mediator.Queue) *Client {
	return &Client{
		BaseURL:      baseURL,
		ControlBoxID: controlBoxID,
		TMCID:        tmcID,
		HTTP:         &http.Client{Timeout: callTimeout},
		Queue:        queue,
		Limiter:      NewRateLimiter(1, 3),
		Breaker:      NewCircuitBreaker(30 * time.Second),
	}
}

var _ strategy.CloudClient = (*Client)(nil)

// Ping probes connectivity with the management service before SET_UP
// requests configuration, folding in the original's "cloudConnect" step
// (§6.1 GET /id/<table>/<identifier>). It blocks for up to the retry
// chain's duration; a persistent failure is reported as any other
// CloudTransientError.
func (c *Client) Ping() error {
	return c.withRetry(context.Background(), "ping", func(ctx context.Context) error {
		body, err := c.getRaw(ctx, fmt.Sprintf("/id/controlbox/%s", c.ControlBoxID))
		if err != nil {
			return err
		}
		var resp idResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s: %s", resp.Error, resp.Detail)
		}
		return nil
	})
}

// RequestConfiguration fetches the PSEM and TSEM documents for this
// control box's TMC and posts each back as a CloudResponse event once it
// arrives (§4.E SET_UP "on entry"; §6.1 GET /data/<table>/<field>/<value>).
func (c *Client) RequestConfiguration() {
	go c.fetchConfig("psem", "p_semaphore", mediator.PSEMConfig)
	go c.fetchConfig("tsem", "t_semaphore", mediator.TSEMConfig)
}

func (c *Client) fetchConfig(key, table string, kind mediator.CloudResponseKind) {
	var body []byte
	err := c.withRetry(context.Background(), key, func(ctx context.Context) error {
		b, err := c.getRaw(ctx, fmt.Sprintf("/data/%s/tmcid/%s", table, c.TMCID))
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		c.reportFault(err)
		return
	}
	c.Queue.Push(mediator.Event{
		Kind:            mediator.KindCloudResponse,
		CloudResponse:   kind,
		CloudConfigJSON: body,
	})
}

// ValidateRFID checks a scanned tag's UUID against the rfid_card table and
// posts the result back as an RFIDValidation CloudResponse event (§6.1 GET
// /data/rfid_card/uuid/<value>).
func (c *Client) ValidateRFID(location int, uuid uint32) {
	go func() {
		var rows []rfidCardRow
		err := c.withRetry(context.Background(), "rfid-validate", func(ctx context.Context) error {
			body, err := c.getRaw(ctx, fmt.Sprintf("/data/rfid_card/uuid/%d", uuid))
			if err != nil {
				return err
			}
			var found foundResponse
			if json.Unmarshal(body, &found) == nil && !found.Found {
				rows = nil
				return nil
			}
			return json.Unmarshal(body, &rows)
		})
		if err != nil {
			c.reportFault(err)
			return
		}
		valid := len(rows) > 0
		if valid {
			c.markCardUsed(uuid)
		}
		c.Queue.Push(mediator.Event{
			Kind:              mediator.KindCloudResponse,
			CloudResponse:     mediator.RFIDValidation,
			CloudRFIDValid:    valid,
			CloudRFIDLocation: location,
		})
	}()
}

// markCardUsed records the scan timestamp on the rfid_card row (§6.1 PATCH
// /data/<table>). It runs independently of the validation reply so a slow
// or failed PATCH never delays the RFIDValidation event the scheduler is
// waiting on.
func (c *Client) markCardUsed(uuid uint32) {
	go func() {
		err := c.withRetry(context.Background(), "rfid-mark-used", func(ctx context.Context) error {
			return c.patchJSON(ctx, "/data/rfid_card", patchRequest{
				IdentifierField: "uuid",
				IdentifierValue: fmt.Sprintf("%d", uuid),
				UpdateField:     "last_used",
				UpdateValue:     formatTimestamp(time.Now()),
			})
		})
		if err != nil {
			c.reportFault(err)
		}
	}()
}

// ReportEmergency posts the audit record for an honored pre-emption (§6.1
// POST /data/emergencyvehicle).
func (c *Client) ReportEmergency(rec strategy.EmergencyRecord) {
	go func() {
		payload := emergencyVehicleRequest{
			TMCID:         c.TMCID,
			ControlBoxID:  c.ControlBoxID,
			LicensePlate:  rec.Plate,
			Origin:        rec.Origin,
			Destination:   rec.Destination,
			PriorityLevel: rec.Priority,
			Timestamp:     formatTimestamp(rec.Timestamp),
		}
		err := c.withRetry(context.Background(), "report-emergency", func(ctx context.Context) error {
			return c.postJSON(ctx, "/data/emergencyvehicle", payload)
		})
		if err != nil {
			c.reportFault(err)
		}
	}()
}

// LogPedestrianCrossing posts the pedestrian-crossing audit record for a
// granted button extension (§6.1 POST /data/p_semaphore_pedestrian). The
// psem_id is synthesized from the crossing's location, and pedestrianCC_id
// carries this control box's ID, since the
// control box does not retain the original config document's PSEM name
// past validation (config.Load discards it once the structural checks
// pass).
func (c *Client) LogPedestrianCrossing(location int) {
	go func() {
		payload := pedestrianCrossingRequest{
			PsemID:         fmt.Sprintf("PS-loc-%d", location),
			PedestrianCCID: c.ControlBoxID,
			Timestamp:      formatTimestamp(time.Now()),
		}
		err := c.withRetry(context.Background(), "pedestrian-log", func(ctx context.Context) error {
			return c.postJSON(ctx, "/data/p_semaphore_pedestrian", payload)
		})
		if err != nil {
			c.reportFault(err)
		}
	}()
}

// reportFault escalates a persistent CloudTransientError onto the mediator
// queue; every strategy but SET_UP/FAILURE reacts by entering FAILURE.
func (c *Client) reportFault(err error) {
	log.Printf("[cloud] persistent failure: %v", err)
	c.Queue.Push(mediator.Event{Kind: mediator.KindFault, FaultErr: err})
}

// withRetry runs fn up to maxAttempts times with a fixed 5s back-off
// between attempts (§7: "retried 3x with 5s back-off; persistent ->
// FAILURE"). The circuit breaker short-circuits the whole call, including
// its retries, while it is open.
func (c *Client) withRetry(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if !c.Breaker.Allow() {
		observability.CloudCircuitState.Set(float64(c.Breaker.State()))
		return &transientError{op: key, err: fmt.Errorf("circuit open")}
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		if c.Limiter.Allow(key) {
			callCtx, cancel := context.WithTimeout(ctx, callTimeout)
			err = fn(callCtx)
			cancel()
		} else {
			err = fmt.Errorf("rate limited")
		}
		if err == nil {
			c.Breaker.RecordSuccess()
			observability.CloudCircuitState.Set(float64(c.Breaker.State()))
			return nil
		}
		lastErr = &transientError{op: key, err: err}
		log.Printf("[cloud] %s attempt %d/%d failed: %v", key, attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.Breaker.RecordFailure()
	observability.CloudCircuitState.Set(float64(c.Breaker.State()))
	observability.CloudCallFailures.WithLabelValues(key).Inc()
	return lastErr
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) patchJSON(ctx context.Context, path string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if req.Method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}
	return body, nil
}
