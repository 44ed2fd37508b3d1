package config

import (
	"os"
	"testing"

	"github.com/andrem20/allways-safe/controlbox/semaphore"
)

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return b
}

func TestLoadValidDocuments(t *testing.T) {
	psem := mustRead(t, "testdata/correct_PSEM.json")
	tsem := mustRead(t, "testdata/correct_TSEM.json")

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	result, err := Load(psem, tsem, lines, allocator, Callbacks{
		OnButtonPress: func(int) {},
		OnRFIDScan:    func(int, uint32) {},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(result.Traffics) != 4 {
		t.Fatalf("expected 4 traffic semaphores, got %d", len(result.Traffics))
	}
	if len(result.Crosswalks) != 1 {
		t.Fatalf("expected 1 crosswalk, got %d", len(result.Crosswalks))
	}
	if result.MaxLocation != 6 {
		t.Fatalf("expected maxLocation 6, got %d", result.MaxLocation)
	}

	cw := result.Crosswalks[0]
	if cw.Min() != 1 || cw.Max() != 3 {
		t.Fatalf("expected crosswalk (1,3), got (%d,%d)", cw.Min(), cw.Max())
	}

	for i := 1; i < len(result.Traffics); i++ {
		if result.Traffics[i-1].Location > result.Traffics[i].Location {
			t.Fatalf("traffic semaphores not sorted by location")
		}
	}
}

func TestLoadOddPSEMCountFailsCrosswalkPairing(t *testing.T) {
	psem := mustRead(t, "testdata/odd_PSEM.json")
	tsem := mustRead(t, "testdata/correct_TSEM.json")

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	_, err := Load(psem, tsem, lines, allocator, Callbacks{})
	if _, ok := err.(*CrosswalkPairing); !ok {
		t.Fatalf("expected CrosswalkPairing, got %v", err)
	}
}

func TestLoadMissingButtonFieldsFailsConfigInvalid(t *testing.T) {
	psem := []byte(`[
		{"name":"PS1","location":1,"gpio_red":1,"gpio_green":2,"hasButton":1,"hasCardReader":0,"hasBuzzer":0},
		{"name":"PS2","location":3,"gpio_red":4,"gpio_green":5,"hasButton":0,"hasCardReader":0,"hasBuzzer":0}
	]`)
	tsem := []byte(`[]`)

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	_, err := Load(psem, tsem, lines, allocator, Callbacks{})
	if _, ok := err.(*ConfigInvalid); !ok {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestLoadDuplicateLocationFailsLocationCollision(t *testing.T) {
	psem := []byte(`[]`)
	tsem := []byte(`[
		{"name":"TS1","location":0,"destinations":[4],"gpio_red":13,"gpio_green":14,"gpio_yellow":15},
		{"name":"TS2","location":0,"destinations":[6],"gpio_red":16,"gpio_green":17,"gpio_yellow":18}
	]`)

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	_, err := Load(psem, tsem, lines, allocator, Callbacks{})
	if _, ok := err.(*LocationCollision); !ok {
		t.Fatalf("expected LocationCollision, got %v", err)
	}
}

func TestLoadGpioOutsideAllowListFailsGpioCollision(t *testing.T) {
	psem := []byte(`[]`)
	tsem := []byte(`[
		{"name":"TS1","location":0,"destinations":[4],"gpio_red":99,"gpio_green":14,"gpio_yellow":15}
	]`)

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	_, err := Load(psem, tsem, lines, allocator, Callbacks{})
	if _, ok := err.(*GpioCollision); !ok {
		t.Fatalf("expected GpioCollision, got %v", err)
	}
}

func TestLoadEmptyDestinationsFailsConfigInvalid(t *testing.T) {
	psem := []byte(`[]`)
	tsem := []byte(`[
		{"name":"TS1","location":0,"destinations":[],"gpio_red":13,"gpio_green":14,"gpio_yellow":15}
	]`)

	lines := semaphore.NewSimulatedLines()
	allocator := semaphore.NewLineAllocator()

	_, err := Load(psem, tsem, lines, allocator, Callbacks{})
	if _, ok := err.(*ConfigInvalid); !ok {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}
