package strategy

import (
	"log"
	"os"
	"sync"

	"github.com/andrem20/allways-safe/controlbox/config"
	"github.com/andrem20/allways-safe/controlbox/mediator"
	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

// SetUp is the boot-time strategy: it requests the PSEM/TSEM documents from
// the cloud collaborator and, once both have arrived, validates them
// through the Configuration Loader and hands the result to OnConfigured.
type SetUp struct {
	Cloud     CloudClient
	Writer    semaphore.LineWriter
	Allocator *semaphore.LineAllocator
	Callbacks config.Callbacks

	// OnConfigured runs the rest of boot: Conflict Planner, Scheduler
	// construction, the all-red warning, and the switch to NORMAL. It is
	// never reached on a configuration error: Handle exits the process with
	// code 2 first (§6.5), matching the "fatal at SET_UP" contract in §7.
	OnConfigured func(result *config.Result)

	// OnFault runs when the configuration request itself suffers a
	// persistent CloudTransientError (§7): unlike ConfigInvalid this is not
	// fatal, it escalates to FAILURE so a later cloud recovery can still be
	// observed by an operator watching the dashboard.
	OnFault func(err error)

	mu                 sync.Mutex
	psemJSON           []byte
	tsemJSON           []byte
	havePSEM, haveTSEM bool
}

// Enter probes cloud connectivity, then emits the outbound configuration
// request (§4.E SET_UP "on entry"). A ping failure is a CloudTransientError
// like any other cloud call and escalates to FAILURE through OnFault rather
// than blocking SET_UP forever.
func (s *SetUp) Enter() {
	log.Printf("[setup] pinging cloud collaborator")
	if err := s.Cloud.Ping(); err != nil {
		log.Printf("[setup] cloud ping failed: %v", err)
		if s.OnFault != nil {
			s.OnFault(err)
		}
		return
	}
	log.Printf("[setup] requesting configuration from cloud")
	s.Cloud.RequestConfiguration()
}

// Handle processes CloudResponse events carrying the PSEM/TSEM documents
// and hands a fault event to OnFault. Any other event kind is ignored;
// nothing else is expected during SET_UP.
func (s *SetUp) Handle(e mediator.Event) {
	if e.Kind == mediator.KindFault {
		if s.OnFault != nil {
			s.OnFault(e.FaultErr)
		}
		return
	}
	if e.Kind != mediator.KindCloudResponse {
		return
	}

	s.mu.Lock()
	switch e.CloudResponse {
	case mediator.PSEMConfig:
		s.psemJSON = e.CloudConfigJSON
		s.havePSEM = true
	case mediator.TSEMConfig:
		s.tsemJSON = e.CloudConfigJSON
		s.haveTSEM = true
	}
	ready := s.havePSEM && s.haveTSEM
	psem, tsem := s.psemJSON, s.tsemJSON
	s.mu.Unlock()

	if !ready {
		return
	}

	result, err := config.Load(psem, tsem, s.Writer, s.Allocator, s.Callbacks)
	if err != nil {
		log.Printf("[setup] configuration invalid, exiting: %v", err)
		os.Exit(2)
	}
	s.OnConfigured(result)
}
