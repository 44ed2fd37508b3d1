package cloud

import "time"

// timestampLayout is the ISO-8601 UTC layout the management service expects
// on every outbound timestamp field (spec.md §6.1).
const timestampLayout = "2006-01-02T15:04:05Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// idResponse is the body of a GET /id/<table>/<identifier> reply.
type idResponse struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// foundResponse is returned by GET /data/<table>/<field>/<value> when the
// table has no matching row.
type foundResponse struct {
	Found bool `json:"found"`
}

// patchRequest is the body of a PATCH /data/<table> call.
type patchRequest struct {
	IdentifierField string `json:"identifierField"`
	IdentifierValue string `json:"identifierValue"`
	UpdateField     string `json:"updateField"`
	UpdateValue     string `json:"updateValue"`
}

// pedestrianCrossingRequest is the body of POST /data/p_semaphore_pedestrian,
// logging that a pedestrian crossing CC (crosswalk controller) changed state.
type pedestrianCrossingRequest struct {
	PsemID         string `json:"psem_id"`
	PedestrianCCID string `json:"pedestrianCC_id"`
	Timestamp      string `json:"timestamp"`
}

// emergencyVehicleRequest is the body of POST /data/emergencyvehicle, the
// audit record for an honored pre-emption (§6.1 row 5).
type emergencyVehicleRequest struct {
	TMCID         string `json:"tmcid"`
	ControlBoxID  string `json:"controlbox_id"`
	LicensePlate  string `json:"licenseplate"`
	Origin        int    `json:"origin"`
	Destination   int    `json:"destination"`
	PriorityLevel int    `json:"priority_level"`
	Timestamp     string `json:"timestamp"`
}

// rfidCardRow is one row of the rfid_card table, returned by GET
// /data/rfid_card/uuid/<value>.
type rfidCardRow struct {
	UUID     uint32 `json:"uuid"`
	Location int    `json:"location"`
}
