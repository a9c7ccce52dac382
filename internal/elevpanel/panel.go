// Package elevpanel applies the internal-controls operations: one short
// mutation of a car's shared record per invocation.
package elevpanel

import (
	"errors"
	"fmt"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
)

// The user-visible precondition failures. The messages are part of the
// command-line contract.
var (
	ErrNotServiceMode = errors.New("Operation only allowed in service mode.")
	ErrDoorsOpen      = errors.New("Operation not allowed while doors are open.")
	ErrMoving         = errors.New("Operation not allowed while elevator is moving.")
	ErrBeyondRange    = errors.New("Cannot move beyond elevator's range.")
	ErrInvalidOp      = errors.New("Invalid operation.")
)

// Apply performs a single named operation on the record: acquires the
// mutex, mutates, broadcasts, releases. The caller owns attach/detach.
func Apply(r *elevshm.Region, operation string) error {
	r.Lock()
	defer r.Unlock()

	switch operation {
	case "open":
		r.SetFlag(elevshm.OpenButton, 1)
	case "close":
		r.SetFlag(elevshm.CloseButton, 1)
	case "stop":
		r.SetFlag(elevshm.EmergencyStop, 1)
	case "service_on":
		r.SetFlag(elevshm.IndividualServiceMode, 1)
		r.SetFlag(elevshm.EmergencyMode, 0)
	case "service_off":
		r.SetFlag(elevshm.IndividualServiceMode, 0)
	case "up", "down":
		if err := applyStep(r, operation == "up"); err != nil {
			return err
		}
	default:
		return ErrInvalidOp
	}

	r.Broadcast()
	return nil
}

// applyStep handles the service-mode up/down commands: it points the
// destination at the adjacent floor after the preconditions hold.
func applyStep(r *elevshm.Region, up bool) error {
	if !r.FlagSet(elevshm.IndividualServiceMode) {
		return ErrNotServiceMode
	}
	switch r.Status() {
	case elevconsts.Between:
		return ErrMoving
	case elevconsts.Closed:
	default:
		return ErrDoorsOpen
	}

	next := elevfloor.Adjacent(r.CurrentFloor(), up)
	if !elevfloor.Valid(next) {
		return ErrBeyondRange
	}
	if elevfloor.Compare(next, r.DestinationFloor()) == 0 {
		// Already heading there.
		return ErrBeyondRange
	}

	r.SetDestinationFloor(next)
	return nil
}

// Attach opens the named car's record, mapping the not-found case onto the
// user-visible message.
func Attach(carName string) (*elevshm.Region, error) {
	r, err := elevshm.Open(carName)
	if err != nil {
		return nil, fmt.Errorf("Unable to access car %s.", carName)
	}
	return r, nil
}
