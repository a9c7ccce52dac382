package elevcar

import (
	"context"
	"net"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
	"github.com/christian-bunn/elevator-control-system/internal/elevwire"
)

// Companion is the network side of the car: it keeps a connection to the
// controller, streams STATUS reports and applies FLOOR directives. While
// the car is in individual service or emergency mode it stays offline.
type Companion struct {
	region  *elevshm.Region
	driver  *Driver
	name    string
	lowest  elevfloor.Label
	highest elevfloor.Label
	delay   time.Duration
	address string
}

func NewCompanion(region *elevshm.Region, driver *Driver, name string, lowest, highest elevfloor.Label, delay time.Duration, address string) *Companion {
	return &Companion{
		region:  region,
		driver:  driver,
		name:    name,
		lowest:  lowest,
		highest: highest,
		delay:   delay,
		address: address,
	}
}

// Run maintains the controller connection until ctx is cancelled,
// reconnecting one delay period after any failure.
func (c *Companion) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if c.inSpecialMode() {
			c.sleep(ctx)
			continue
		}

		conn, err := net.DialTimeout("tcp", c.address, c.delay)
		if err != nil {
			c.sleep(ctx)
			continue
		}
		c.serve(ctx, conn)
		conn.Close()
		c.sleep(ctx)
	}
}

func (c *Companion) inSpecialMode() bool {
	r := c.region
	r.Lock()
	special := r.FlagSet(elevshm.IndividualServiceMode) || r.FlagSet(elevshm.EmergencyMode)
	r.Unlock()
	return special
}

// serve runs one connection: handshake, then change-driven STATUS reports
// with a heartbeat fallback, while a reader goroutine applies incoming
// FLOOR directives. Returns when the connection fails, the car enters a
// special mode, or ctx is cancelled.
func (c *Companion) serve(ctx context.Context, conn net.Conn) {
	handshake := elevwire.CarHandshake{Name: c.name, Lowest: c.lowest, Highest: c.highest}
	if err := elevwire.Send(conn, handshake.String()); err != nil {
		return
	}
	if err := c.sendStatus(conn); err != nil {
		return
	}

	readErr := make(chan error, 1)
	go c.readDirectives(conn, readErr)

	for ctx.Err() == nil {
		select {
		case <-readErr:
			return
		default:
		}

		r := c.region
		r.Lock()
		r.WaitTimeout(c.delay)
		service := r.FlagSet(elevshm.IndividualServiceMode)
		emergency := r.FlagSet(elevshm.EmergencyMode)
		r.Unlock()

		// Leaving the fleet: one parting notice, then hang up.
		if service {
			elevwire.Send(conn, elevwire.MSG_INDIVIDUAL_SERVICE)
			return
		}
		if emergency {
			elevwire.Send(conn, elevwire.MSG_EMERGENCY)
			return
		}

		if err := c.sendStatus(conn); err != nil {
			return
		}
	}
}

func (c *Companion) sendStatus(conn net.Conn) error {
	r := c.region
	r.Lock()
	report := elevwire.StatusReport{
		Status:      r.Status(),
		Current:     r.CurrentFloor(),
		Destination: r.DestinationFloor(),
	}
	r.Unlock()
	return elevwire.Send(conn, report.String())
}

// readDirectives blocks on the socket, writing each FLOOR directive into
// the record. It exits when the connection is closed or fails.
func (c *Companion) readDirectives(conn net.Conn, readErr chan<- error) {
	for {
		payload, err := elevwire.Receive(conn)
		if err != nil {
			readErr <- err
			return
		}
		floor, err := elevwire.ParseFloorDirective(payload)
		if err != nil {
			Log.Debug().Msgf("Car %s: ignoring message %q", c.name, payload)
			continue
		}

		r := c.region
		r.Lock()
		r.SetDestinationFloor(floor)
		r.Broadcast()
		r.Unlock()
		c.driver.Nudge()
	}
}

func (c *Companion) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.delay):
	}
}
