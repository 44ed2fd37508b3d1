package semaphore

// emergencyBuzzerHz is the audible tone driven while a PSEM is RED during an
// active emergency pre-emption (original_source EM_FREQ, §4.C buzzer policy).
const emergencyBuzzerHz = 4000

// pedestrianGreenHz is the tone driven while a PSEM is GREEN.
const pedestrianGreenHz = 2

// Buzzer is the audible cue at a crosswalk. Real hardware drives a PWM line;
// here it is tracked as a frequency so tests can assert on buzzer policy.
type Buzzer struct {
	activeHz int
}

// NewBuzzer returns a silent buzzer.
func NewBuzzer() *Buzzer {
	return &Buzzer{}
}

func (b *Buzzer) activate(hz int) {
	b.activeHz = hz
}

func (b *Buzzer) deactivate() {
	b.activeHz = 0
}

// ActiveHz reports the current drive frequency, 0 when silent.
func (b *Buzzer) ActiveHz() int {
	return b.activeHz
}
