// Package elevsafety is the passive safety monitor: it wakes whenever a
// car's shared record is broadcast and forces the car into emergency mode
// when an invariant fails.
package elevsafety

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

var Log = logger.GetLogger()

// POLL_INTERVAL bounds how long the monitor sleeps between wakeups so
// cancellation is noticed even on a quiet record.
const POLL_INTERVAL = 100 * time.Millisecond

// Monitor watches one car's shared record.
type Monitor struct {
	region *elevshm.Region
	out    io.Writer
}

func NewMonitor(region *elevshm.Region, out io.Writer) *Monitor {
	return &Monitor{region: region, out: out}
}

// Run blocks until ctx is cancelled, evaluating the safety checks on each
// condition-variable wakeup.
func (m *Monitor) Run(ctx context.Context) {
	r := m.region
	r.Lock()
	for ctx.Err() == nil {
		r.WaitTimeout(POLL_INTERVAL)
		m.check(r)
	}
	r.Unlock()
}

// check runs the ordered safety rules with the mutex held.
func (m *Monitor) check(r *elevshm.Region) {
	if r.FlagSet(elevshm.DoorObstruction) && r.Status() == elevconsts.Closing {
		r.SetStatus(elevconsts.Opening)
		fmt.Fprintln(m.out, "Door obstruction detected! Opening doors.")
		r.Broadcast()
	}

	if r.FlagSet(elevshm.EmergencyStop) && !r.FlagSet(elevshm.EmergencyMode) {
		fmt.Fprintln(m.out, "The emergency stop button has been pressed!")
		r.SetFlag(elevshm.EmergencyMode, 1)
		r.Broadcast()
	}

	if r.FlagSet(elevshm.Overload) && !r.FlagSet(elevshm.EmergencyMode) {
		fmt.Fprintln(m.out, "The overload sensor has been tripped!")
		r.SetFlag(elevshm.EmergencyMode, 1)
		r.Broadcast()
	}

	if !r.FlagSet(elevshm.EmergencyMode) && !consistent(r) {
		fmt.Fprintln(m.out, "Data consistency error!")
		r.SetFlag(elevshm.EmergencyMode, 1)
		r.Broadcast()
	}
}

// consistent evaluates the record's structural invariants.
func consistent(r *elevshm.Region) bool {
	if !elevfloor.Valid(r.CurrentFloor()) || !elevfloor.Valid(r.DestinationFloor()) {
		return false
	}
	if !elevconsts.ValidStatus(r.RawStatus()) {
		return false
	}
	for f := elevshm.Flag(0); f <= elevshm.EmergencyMode; f++ {
		if r.Flag(f) > 1 {
			return false
		}
	}
	if r.FlagSet(elevshm.DoorObstruction) {
		s := r.Status()
		if s != elevconsts.Opening && s != elevconsts.Closing {
			return false
		}
	}
	return true
}
