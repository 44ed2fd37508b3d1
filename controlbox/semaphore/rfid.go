package semaphore

// RFID is a card reader at a pedestrian crossing (original MFRC522 driver).
// A real reader polls an SPI bus on its own thread; Scan stands in for a tag
// being presented, so the control box's handling can be exercised without
// real hardware.
type RFID struct {
	onRead func(uuid uint32)
}

// NewRFID wires a reader to the callback invoked when a tag is scanned.
func NewRFID(onRead func(uuid uint32)) *RFID {
	return &RFID{onRead: onRead}
}

// Scan reports a tag read.
func (r *RFID) Scan(uuid uint32) {
	r.onRead(uuid)
}
