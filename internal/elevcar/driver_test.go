package elevcar

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
)

const TEST_DELAY = 40 * time.Millisecond
const TEST_TIMEOUT = 5 * time.Second

var regionSeq atomic.Int32

func testRegion(t *testing.T, lowest elevfloor.Label) *elevshm.Region {
	t.Helper()
	name := fmt.Sprintf("drivertest%d-%d", os.Getpid(), regionSeq.Add(1))
	r, err := elevshm.Create(name)
	if err != nil {
		t.Fatalf("Create returned error %v", err)
	}
	t.Cleanup(func() {
		r.Unlink()
		r.Close()
	})
	r.Lock()
	r.Initialise(lowest)
	r.Unlock()
	return r
}

func startDriver(t *testing.T, r *elevshm.Region, lowest, highest elevfloor.Label) *Driver {
	t.Helper()
	driver := NewDriver(r, lowest, highest, TEST_DELAY)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		driver.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		// Wake the driver out of any condition wait.
		r.Lock()
		r.Broadcast()
		r.Unlock()
		<-done
	})
	return driver
}

func waitFor(t *testing.T, r *elevshm.Region, what string, cond func(elevshm.State) bool) elevshm.State {
	t.Helper()
	deadline := time.Now().Add(TEST_TIMEOUT)
	for time.Now().Before(deadline) {
		r.Lock()
		s := r.Snapshot()
		r.Unlock()
		if cond(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
	return elevshm.State{}
}

func setDestination(r *elevshm.Region, d *Driver, floor elevfloor.Label) {
	r.Lock()
	r.SetDestinationFloor(floor)
	r.Broadcast()
	r.Unlock()
	d.Nudge()
}

func TestTravelToDestinationRunsDoorCycle(t *testing.T) {
	r := testRegion(t, "1")
	d := startDriver(t, r, "1", "5")

	setDestination(r, d, "3")

	waitFor(t, r, "car moving", func(s elevshm.State) bool {
		return s.Status == elevconsts.Between
	})
	waitFor(t, r, "doors open at 3", func(s elevshm.State) bool {
		return s.CurrentFloor == "3" && s.Status == elevconsts.Open
	})
	waitFor(t, r, "doors closed at 3", func(s elevshm.State) bool {
		return s.CurrentFloor == "3" && s.Status == elevconsts.Closed
	})
}

func TestDirectiveAtCurrentFloorOpensDoors(t *testing.T) {
	r := testRegion(t, "2")
	d := startDriver(t, r, "1", "5")

	setDestination(r, d, "2")

	waitFor(t, r, "doors open", func(s elevshm.State) bool {
		return s.Status == elevconsts.Open && s.CurrentFloor == "2"
	})
	waitFor(t, r, "doors closed", func(s elevshm.State) bool {
		return s.Status == elevconsts.Closed && s.CurrentFloor == "2"
	})
}

func TestOpenButtonRunsFullCycle(t *testing.T) {
	r := testRegion(t, "1")
	startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.OpenButton, 1)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "doors opening", func(s elevshm.State) bool {
		return s.Status == elevconsts.Opening || s.Status == elevconsts.Open
	})
	s := waitFor(t, r, "doors closed again", func(s elevshm.State) bool {
		return s.Status == elevconsts.Closed
	})
	if s.OpenButton != 0 {
		t.Errorf("open button not consumed: %+v", s)
	}
}

func TestObstructionAbortsClose(t *testing.T) {
	r := testRegion(t, "1")
	startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.OpenButton, 1)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "doors closing", func(s elevshm.State) bool {
		return s.Status == elevconsts.Closing
	})

	r.Lock()
	r.SetFlag(elevshm.DoorObstruction, 1)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "doors reopening", func(s elevshm.State) bool {
		return s.Status == elevconsts.Opening || s.Status == elevconsts.Open
	})

	r.Lock()
	r.SetFlag(elevshm.DoorObstruction, 0)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "doors closed after obstruction cleared", func(s elevshm.State) bool {
		return s.Status == elevconsts.Closed
	})
}

func TestEmergencyStopDuringMotion(t *testing.T) {
	r := testRegion(t, "1")
	d := startDriver(t, r, "1", "9")

	setDestination(r, d, "9")
	waitFor(t, r, "car moving", func(s elevshm.State) bool {
		return s.Status == elevconsts.Between
	})

	r.Lock()
	r.SetFlag(elevshm.EmergencyStop, 1)
	r.Broadcast()
	r.Unlock()

	s := waitFor(t, r, "emergency halt", func(s elevshm.State) bool {
		return s.EmergencyMode == 1 && s.Status == elevconsts.Closed
	})
	halted := s.CurrentFloor

	// Further directives must not cause motion.
	setDestination(r, d, "9")
	time.Sleep(4 * TEST_DELAY)

	r.Lock()
	now := r.Snapshot()
	r.Unlock()
	if now.CurrentFloor != halted {
		t.Errorf("car moved in emergency mode: %s -> %s", halted, now.CurrentFloor)
	}
	if now.Status == elevconsts.Between {
		t.Errorf("car is between floors in emergency mode")
	}
}

func TestEmergencyDoorsStillAnswerButtons(t *testing.T) {
	r := testRegion(t, "1")
	startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.EmergencyMode, 1)
	r.SetFlag(elevshm.OpenButton, 1)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "doors open in emergency", func(s elevshm.State) bool {
		return s.Status == elevconsts.Open
	})
	waitFor(t, r, "doors closed in emergency", func(s elevshm.State) bool {
		return s.Status == elevconsts.Closed
	})
}

func TestServiceModeSingleStep(t *testing.T) {
	r := testRegion(t, "1")
	d := startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.IndividualServiceMode, 1)
	r.Broadcast()
	r.Unlock()

	setDestination(r, d, "2")

	s := waitFor(t, r, "single step up", func(s elevshm.State) bool {
		return s.CurrentFloor == "2" && s.Status == elevconsts.Closed
	})
	if s.DestinationFloor != "2" {
		t.Errorf("destination = %s after step, expected 2", s.DestinationFloor)
	}

	// The car parks with the doors closed; no automatic cycle.
	time.Sleep(3 * TEST_DELAY)
	r.Lock()
	now := r.Snapshot()
	r.Unlock()
	if now.Status != elevconsts.Closed || now.CurrentFloor != "2" {
		t.Errorf("service stop not terminal: %+v", now)
	}
}

func TestServiceModeRejectsOutOfRange(t *testing.T) {
	r := testRegion(t, "1")
	d := startDriver(t, r, "1", "2")

	r.Lock()
	r.SetFlag(elevshm.IndividualServiceMode, 1)
	r.Broadcast()
	r.Unlock()

	setDestination(r, d, "5")

	waitFor(t, r, "out-of-range request dropped", func(s elevshm.State) bool {
		return s.DestinationFloor == "1" && s.CurrentFloor == "1"
	})
}

func TestOverloadKeepsDoorsOpen(t *testing.T) {
	r := testRegion(t, "1")
	d := startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.Overload, 1)
	r.Unlock()

	setDestination(r, d, "3")

	waitFor(t, r, "doors reopened under overload", func(s elevshm.State) bool {
		return s.Status == elevconsts.Open && s.CurrentFloor == "1"
	})

	r.Lock()
	r.SetFlag(elevshm.Overload, 0)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "travel resumes once overload clears", func(s elevshm.State) bool {
		return s.CurrentFloor == "3" && s.Status == elevconsts.Closed
	})
}

func TestEmergencyStopPromotesToEmergencyMode(t *testing.T) {
	r := testRegion(t, "1")
	startDriver(t, r, "1", "5")

	r.Lock()
	r.SetFlag(elevshm.EmergencyStop, 1)
	r.Broadcast()
	r.Unlock()

	waitFor(t, r, "emergency mode set", func(s elevshm.State) bool {
		return s.EmergencyMode == 1
	})
}
