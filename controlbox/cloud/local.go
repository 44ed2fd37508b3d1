package cloud

import (
	"log"
	"os"

	"github.com/andrem20/allways-safe/controlbox/mediator"
)

// LocalConfigClient wraps a Client but serves SET_UP's PSEM/TSEM documents
// from local files instead of the management service's HTTP endpoint. It
// exists for dev/test environments that stand up a control box without a
// reachable cloud collaborator (SPEC_FULL.md §A "Configuration": the control
// box reads PSEM_CONFIG_PATH/TSEM_CONFIG_PATH as a local fallback fixture).
// Every other call (RFID validation, audit posts) still goes over HTTP
// through the embedded Client, so FAILURE/retry behavior for those calls is
// unchanged.
type LocalConfigClient struct {
	*Client
	PSEMPath string
	TSEMPath string
}

// NewLocalConfigClient builds a client that reads psemPath/tsemPath once
// RequestConfiguration is called, and otherwise delegates to inner.
func NewLocalConfigClient(inner *Client, psemPath, tsemPath string) *LocalConfigClient {
	return &LocalConfigClient{Client: inner, PSEMPath: psemPath, TSEMPath: tsemPath}
}

// RequestConfiguration reads the two local fixture files and posts them
// onto the mediator queue as the CloudResponse events SET_UP expects,
// instead of issuing the GET /data/<table>/<field>/<value> calls Client
// would otherwise make.
func (c *LocalConfigClient) RequestConfiguration() {
	go c.loadFixture(c.PSEMPath, mediator.PSEMConfig)
	go c.loadFixture(c.TSEMPath, mediator.TSEMConfig)
}

func (c *LocalConfigClient) loadFixture(path string, kind mediator.CloudResponseKind) {
	body, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[cloud] local config fixture %s: %v", path, err)
		c.reportFault(err)
		return
	}
	c.Queue.Push(mediator.Event{
		Kind:            mediator.KindCloudResponse,
		CloudResponse:   kind,
		CloudConfigJSON: body,
	})
}
