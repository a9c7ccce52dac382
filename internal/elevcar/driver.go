// Package elevcar runs one elevator car: the state machine sequencing
// door and motion phases over the shared record, and the companion loop
// that reports status to the controller and receives destinations.
package elevcar

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

var Log = logger.GetLogger()

// Driver is the car's state machine. Every phase transition that is not
// instantaneous takes exactly one delay period.
type Driver struct {
	region  *elevshm.Region
	lowest  elevfloor.Label
	highest elevfloor.Label
	delay   time.Duration

	// directive is raised by the companion when a FLOOR message arrives,
	// so a directive naming the current floor still opens the doors.
	directive atomic.Bool
}

func NewDriver(region *elevshm.Region, lowest, highest elevfloor.Label, delay time.Duration) *Driver {
	return &Driver{
		region:  region,
		lowest:  lowest,
		highest: highest,
		delay:   delay,
	}
}

// Nudge marks that a fresh destination directive arrived.
func (d *Driver) Nudge() {
	d.directive.Store(true)
}

// Run drives the car until ctx is cancelled. The record mutex is held for
// the whole loop except while sleeping through a phase or waiting for a
// broadcast.
func (d *Driver) Run(ctx context.Context) {
	r := d.region
	r.Lock()
	defer r.Unlock()

	for ctx.Err() == nil {
		if r.FlagSet(elevshm.EmergencyStop) && !r.FlagSet(elevshm.EmergencyMode) {
			r.SetFlag(elevshm.EmergencyMode, 1)
			r.Broadcast()
			continue
		}

		switch {
		case r.FlagSet(elevshm.EmergencyMode):
			// Doors still answer the buttons; the car does not move.
			if !d.runDoors(ctx) {
				r.WaitTimeout(d.delay)
			}
		case r.FlagSet(elevshm.IndividualServiceMode):
			if !d.runDoors(ctx) && !d.runServiceStep(ctx) {
				r.WaitTimeout(d.delay)
			}
		default:
			if !d.runDoors(ctx) && !d.runMotion(ctx) {
				r.WaitTimeout(d.delay)
			}
		}
	}
}

// runDoors answers the door buttons. It reports whether it acted.
func (d *Driver) runDoors(ctx context.Context) bool {
	r := d.region

	if r.FlagSet(elevshm.OpenButton) {
		switch r.Status() {
		case elevconsts.Closed, elevconsts.Closing, elevconsts.Open:
			r.SetFlag(elevshm.OpenButton, 0)
			r.Broadcast()
			d.doorCycle(ctx)
			return true
		default:
			// Opening or Between: the press stays set for a later pass.
		}
	}

	if r.FlagSet(elevshm.CloseButton) && r.Status() == elevconsts.Open {
		r.SetFlag(elevshm.CloseButton, 0)
		r.Broadcast()
		d.closeDoors(ctx)
		return true
	}

	return false
}

// doorCycle runs the full Opening -> Open -> Closing -> Closed sequence,
// one delay per phase. Entered with doors Closed, Closing, Between
// (arrival) or already Open.
func (d *Driver) doorCycle(ctx context.Context) {
	r := d.region

	if r.Status() != elevconsts.Open {
		r.SetStatus(elevconsts.Opening)
		r.Broadcast()
		d.sleepUnlocked(ctx)
		if ctx.Err() != nil {
			return
		}
		r.SetStatus(elevconsts.Open)
		r.Broadcast()
	}

	d.dwell(ctx)
	d.closeDoors(ctx)
}

// dwell keeps the doors open for one delay period. An open press restarts
// the period; a close press ends it immediately.
func (d *Driver) dwell(ctx context.Context) {
	r := d.region
	deadline := time.Now().Add(d.delay)

	for ctx.Err() == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		r.WaitTimeout(remaining)
		if r.FlagSet(elevshm.CloseButton) {
			r.SetFlag(elevshm.CloseButton, 0)
			r.Broadcast()
			return
		}
		if r.FlagSet(elevshm.OpenButton) {
			r.SetFlag(elevshm.OpenButton, 0)
			r.Broadcast()
			deadline = time.Now().Add(d.delay)
		}
	}
}

// closeDoors runs Closing -> Closed from Open. An obstruction during the
// closing phase aborts the close and reopens; the safety monitor enforces
// the same rule, and either may win the race.
func (d *Driver) closeDoors(ctx context.Context) {
	r := d.region

	r.SetStatus(elevconsts.Closing)
	r.Broadcast()

	for ctx.Err() == nil {
		d.sleepUnlocked(ctx)
		if ctx.Err() != nil {
			return
		}

		if r.FlagSet(elevshm.DoorObstruction) && r.Status() == elevconsts.Closing {
			r.SetStatus(elevconsts.Opening)
			r.Broadcast()
		}
		if r.Status() == elevconsts.Opening {
			// Reopened, by us or by the safety monitor: run the open
			// phases again before the next close attempt.
			d.sleepUnlocked(ctx)
			if ctx.Err() != nil {
				return
			}
			r.SetStatus(elevconsts.Open)
			r.Broadcast()
			d.dwell(ctx)
			r.SetStatus(elevconsts.Closing)
			r.Broadcast()
			continue
		}

		r.SetStatus(elevconsts.Closed)
		r.Broadcast()
		return
	}
}

// runMotion serves the destination floor in normal operation. It reports
// whether it acted.
func (d *Driver) runMotion(ctx context.Context) bool {
	r := d.region

	cur := r.CurrentFloor()
	dest := r.DestinationFloor()

	if elevfloor.Compare(cur, dest) == 0 {
		// Arrival without motion: a directive named the floor we are on.
		if d.directive.Swap(false) && r.Status() == elevconsts.Closed {
			d.doorCycle(ctx)
			return true
		}
		return false
	}

	switch r.Status() {
	case elevconsts.Closed:
	case elevconsts.Open:
		// Doors were reopened by an overload; resume once it clears.
		if !r.FlagSet(elevshm.Overload) {
			d.closeDoors(ctx)
			return true
		}
		return false
	default:
		return false
	}

	if r.FlagSet(elevshm.Overload) {
		r.SetStatus(elevconsts.Open)
		r.Broadcast()
		return true
	}

	d.directive.Store(false)
	r.SetStatus(elevconsts.Between)
	r.Broadcast()

	for ctx.Err() == nil {
		d.sleepUnlocked(ctx)
		if ctx.Err() != nil {
			return true
		}

		if d.preempted() {
			r.SetStatus(elevconsts.Closed)
			r.Broadcast()
			return true
		}

		cur = r.CurrentFloor()
		dest = r.DestinationFloor()
		next := d.step(cur, dest)
		if elevfloor.Compare(next, cur) == 0 {
			// Destination beyond the car's range: stop at the boundary.
			r.SetDestinationFloor(cur)
			r.SetStatus(elevconsts.Closed)
			r.Broadcast()
			return true
		}

		r.SetCurrentFloor(next)
		r.Broadcast()
		if elevfloor.Compare(next, dest) == 0 {
			break
		}
	}
	if ctx.Err() != nil {
		return true
	}

	d.directive.Store(false)
	d.doorCycle(ctx)
	return true
}

// runServiceStep moves the car a single floor in individual service mode,
// stopping with the doors closed and no onward destination.
func (d *Driver) runServiceStep(ctx context.Context) bool {
	r := d.region

	if r.Status() != elevconsts.Closed {
		return false
	}
	cur := r.CurrentFloor()
	dest := r.DestinationFloor()
	if elevfloor.Compare(cur, dest) == 0 {
		return false
	}
	if !elevfloor.InRange(dest, d.lowest, d.highest) {
		r.SetDestinationFloor(cur)
		r.Broadcast()
		return true
	}

	r.SetStatus(elevconsts.Between)
	r.Broadcast()
	d.sleepUnlocked(ctx)
	if ctx.Err() != nil {
		return true
	}

	if r.FlagSet(elevshm.EmergencyStop) || r.FlagSet(elevshm.EmergencyMode) {
		r.SetStatus(elevconsts.Closed)
		r.Broadcast()
		return true
	}

	next := d.step(cur, r.DestinationFloor())
	r.SetCurrentFloor(next)
	r.SetDestinationFloor(next)
	r.SetStatus(elevconsts.Closed)
	r.Broadcast()
	return true
}

// preempted reports whether continuing the current motion segment is no
// longer consistent with the record's mode flags.
func (d *Driver) preempted() bool {
	r := d.region
	return r.FlagSet(elevshm.EmergencyStop) ||
		r.FlagSet(elevshm.EmergencyMode) ||
		r.FlagSet(elevshm.IndividualServiceMode)
}

// step returns the next floor one segment toward dest, clamped to the
// car's range.
func (d *Driver) step(cur, dest elevfloor.Label) elevfloor.Label {
	if elevfloor.Compare(dest, cur) > 0 {
		return elevfloor.Above(cur, d.highest)
	}
	return elevfloor.Below(cur, d.lowest)
}

// sleepUnlocked releases the record for one delay period. Phase timing
// never holds the mutex.
func (d *Driver) sleepUnlocked(ctx context.Context) {
	r := d.region
	r.Unlock()
	select {
	case <-ctx.Done():
	case <-time.After(d.delay):
	}
	r.Lock()
}
