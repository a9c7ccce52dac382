package elevfleet

import (
	"net"
	"testing"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevwire"
)

const TEST_TIMEOUT = time.Second

// testCar wires a car record to a drained pipe so FLOOR directives can be
// observed without blocking the record's lock.
func testCar(t *testing.T, name string, lowest, highest, current elevfloor.Label) (*Car, <-chan string) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	sent := make(chan string, 16)
	go func() {
		for {
			m, err := elevwire.Receive(client)
			if err != nil {
				close(sent)
				return
			}
			sent <- m
		}
	}()

	car := NewCar(server, elevwire.CarHandshake{Name: name, Lowest: lowest, Highest: highest})
	car.current = current
	car.destination = current
	return car, sent
}

func expectDirective(t *testing.T, sent <-chan string, want string) {
	t.Helper()
	select {
	case got := <-sent:
		if got != want {
			t.Errorf("car received %q, expected %q", got, want)
		}
	case <-time.After(TEST_TIMEOUT):
		t.Errorf("no directive received, expected %q", want)
	}
}

func floors(stops []Stop) []elevfloor.Label {
	out := make([]elevfloor.Label, len(stops))
	for i, s := range stops {
		out[i] = s.Floor
	}
	return out
}

func sameFloors(a []elevfloor.Label, b ...elevfloor.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnqueueCallOrdersStops(t *testing.T) {
	car, sent := testCar(t, "A", "1", "9", "1")

	car.EnqueueCall(elevwire.CallRequest{Source: "3", Destination: "7"})
	expectDirective(t, sent, "FLOOR 3")

	got := floors(car.stops.stops)
	if !sameFloors(got, "3", "7") {
		t.Errorf("stops = %v, expected [3 7]", got)
	}

	// A second upward call on the way slots in by LOOK order.
	car.EnqueueCall(elevwire.CallRequest{Source: "2", Destination: "5"})
	expectDirective(t, sent, "FLOOR 2")

	got = floors(car.stops.stops)
	if !sameFloors(got, "2", "3", "5", "7") {
		t.Errorf("stops = %v, expected [2 3 5 7]", got)
	}
	if car.destination != "2" {
		t.Errorf("destination = %s, expected 2", car.destination)
	}
}

func TestEnqueueCallDownward(t *testing.T) {
	car, sent := testCar(t, "A", "B5", "9", "5")

	car.EnqueueCall(elevwire.CallRequest{Source: "3", Destination: "B2"})
	expectDirective(t, sent, "FLOOR 3")

	got := floors(car.stops.stops)
	if !sameFloors(got, "3", "B2") {
		t.Errorf("stops = %v, expected [3 B2]", got)
	}
	if car.direction != elevconsts.Down {
		t.Errorf("direction = %v, expected Down", car.direction)
	}
}

func TestUpdateStatusPopsHeadOnce(t *testing.T) {
	car, sent := testCar(t, "A", "1", "9", "1")
	car.EnqueueCall(elevwire.CallRequest{Source: "3", Destination: "7"})
	expectDirective(t, sent, "FLOOR 3")

	report := elevwire.StatusReport{Status: elevconsts.Opening, Current: "3", Destination: "3"}
	car.UpdateStatus(report)
	expectDirective(t, sent, "FLOOR 7")

	if got := floors(car.stops.stops); !sameFloors(got, "7") {
		t.Errorf("stops after pop = %v, expected [7]", got)
	}
	if car.destination != "7" {
		t.Errorf("destination = %s, expected 7", car.destination)
	}

	// A repeated identical report must not pop the new head.
	car.UpdateStatus(report)
	if got := floors(car.stops.stops); !sameFloors(got, "7") {
		t.Errorf("stops after duplicate report = %v, expected [7]", got)
	}

	// Serving the final stop empties the list and idles the car.
	car.UpdateStatus(elevwire.StatusReport{Status: elevconsts.Open, Current: "7", Destination: "7"})
	if !car.stops.empty() {
		t.Errorf("stops not empty after final stop")
	}
	if car.direction != elevconsts.Idle {
		t.Errorf("direction = %v, expected Idle", car.direction)
	}
}

func TestUpdateStatusDirection(t *testing.T) {
	car, _ := testCar(t, "A", "1", "9", "1")

	car.UpdateStatus(elevwire.StatusReport{Status: elevconsts.Between, Current: "2", Destination: "5"})
	if car.direction != elevconsts.Up {
		t.Errorf("direction = %v, expected Up", car.direction)
	}

	car.UpdateStatus(elevwire.StatusReport{Status: elevconsts.Between, Current: "5", Destination: "2"})
	if car.direction != elevconsts.Down {
		t.Errorf("direction = %v, expected Down", car.direction)
	}
}

func TestSelectByRangeAndProximity(t *testing.T) {
	fleet := NewFleet(10)

	carA, _ := testCar(t, "A", "1", "5", "2")
	carB, _ := testCar(t, "B", "1", "5", "5")
	if err := fleet.Add(carA); err != nil {
		t.Fatalf("Add(A) returned error %v", err)
	}
	if err := fleet.Add(carB); err != nil {
		t.Fatalf("Add(B) returned error %v", err)
	}

	// A is closer to the source.
	if got := fleet.Select(elevwire.CallRequest{Source: "2", Destination: "4"}); got != carA {
		t.Errorf("Select picked %v, expected car A", got)
	}

	// Out of every car's range.
	if got := fleet.Select(elevwire.CallRequest{Source: "B1", Destination: "B99"}); got != nil {
		t.Errorf("Select picked %v, expected no car", got)
	}
}

func TestSelectRespectsRangeBoundary(t *testing.T) {
	fleet := NewFleet(10)
	car, _ := testCar(t, "A", "B1", "1", "1")
	if err := fleet.Add(car); err != nil {
		t.Fatalf("Add returned error %v", err)
	}

	if got := fleet.Select(elevwire.CallRequest{Source: "1", Destination: "2"}); got != nil {
		t.Errorf("Select accepted a call beyond the car's range")
	}
	if got := fleet.Select(elevwire.CallRequest{Source: "B1", Destination: "1"}); got != car {
		t.Errorf("Select rejected a call inside the car's range")
	}
}

func TestSelectTieBreaksByFleetOrder(t *testing.T) {
	fleet := NewFleet(10)
	carA, _ := testCar(t, "A", "1", "9", "4")
	carB, _ := testCar(t, "B", "1", "9", "4")
	fleet.Add(carA)
	fleet.Add(carB)

	if got := fleet.Select(elevwire.CallRequest{Source: "4", Destination: "6"}); got != carA {
		t.Errorf("Select picked %v, expected the earlier car A", got)
	}
}

func TestFleetCapacity(t *testing.T) {
	fleet := NewFleet(10)
	for i := 0; i < 10; i++ {
		car, _ := testCar(t, string(rune('A'+i)), "1", "9", "1")
		if err := fleet.Add(car); err != nil {
			t.Fatalf("Add %d returned error %v", i, err)
		}
	}
	extra, _ := testCar(t, "K", "1", "9", "1")
	if err := fleet.Add(extra); err != ErrFleetFull {
		t.Errorf("Add beyond capacity returned %v, expected ErrFleetFull", err)
	}

	if fleet.Size() != 10 {
		t.Errorf("Size = %d, expected 10", fleet.Size())
	}
}

func TestRemoveFreesStops(t *testing.T) {
	fleet := NewFleet(10)
	car, sent := testCar(t, "A", "1", "9", "1")
	fleet.Add(car)
	car.EnqueueCall(elevwire.CallRequest{Source: "3", Destination: "7"})
	expectDirective(t, sent, "FLOOR 3")

	fleet.Remove(car)
	if fleet.Size() != 0 {
		t.Errorf("Size after Remove = %d, expected 0", fleet.Size())
	}
	if !car.stops.empty() {
		t.Errorf("stops not freed on removal")
	}
}

func TestSnapshotDetaches(t *testing.T) {
	fleet := NewFleet(10)
	car, sent := testCar(t, "A", "1", "9", "1")
	fleet.Add(car)
	car.EnqueueCall(elevwire.CallRequest{Source: "3", Destination: "7"})
	expectDirective(t, sent, "FLOOR 3")

	snaps := fleet.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot returned %d cars, expected 1", len(snaps))
	}
	snaps[0].Stops[0].Floor = "9"
	if car.stops.head().Floor != "3" {
		t.Errorf("mutating a snapshot leaked into the live record")
	}
}
