// Package elevfleet holds the dispatcher's view of the connected cars:
// one record per car with its floor range, last reported state and
// ordered stop list, plus the range-and-proximity selection rule.
package elevfleet

import (
	"errors"
	"net"
	"sync"

	"github.com/tiendc/go-deepcopy"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevwire"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

var Log = logger.GetLogger()

// ErrFleetFull is returned when the fleet is at capacity.
var ErrFleetFull = errors.New("fleet is full")

// Car is the dispatcher-side record of one connected car. Its own mutex
// orders status and stop-list updates; fleet membership is ordered by the
// fleet mutex. The fleet mutex is always taken first.
type Car struct {
	mu sync.Mutex

	conn    net.Conn
	name    string
	lowest  elevfloor.Label
	highest elevfloor.Label

	status      elevconsts.DoorStatus
	current     elevfloor.Label
	destination elevfloor.Label
	direction   elevconsts.Direction
	stops       stopList
}

// NewCar builds a record from the handshake: parked at its lowest floor,
// doors closed, idle.
func NewCar(conn net.Conn, hs elevwire.CarHandshake) *Car {
	return &Car{
		conn:        conn,
		name:        hs.Name,
		lowest:      hs.Lowest,
		highest:     hs.Highest,
		status:      elevconsts.Closed,
		current:     hs.Lowest,
		destination: hs.Lowest,
		direction:   elevconsts.Idle,
	}
}

func (c *Car) Name() string {
	return c.name
}

// UpdateStatus folds a STATUS report into the record. When the car is
// opening or open at the stop-list head, the head is popped exactly once
// and the next stop (if any) is dispatched as a FLOOR directive.
func (c *Car) UpdateStatus(report elevwire.StatusReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = report.Status
	c.current = report.Current
	c.destination = report.Destination

	switch elevfloor.Compare(c.destination, c.current) {
	case 1:
		c.direction = elevconsts.Up
	case -1:
		c.direction = elevconsts.Down
	default:
		c.direction = elevconsts.Idle
	}

	atStop := c.status == elevconsts.Opening || c.status == elevconsts.Open
	if atStop && !c.stops.empty() && elevfloor.Compare(c.stops.head().Floor, c.current) == 0 {
		c.stops.pop()
		if !c.stops.empty() {
			c.dispatchHead()
		} else {
			c.direction = elevconsts.Idle
		}
	}
}

// EnqueueCall inserts the pickup and dropoff stops for a call, preserving
// LOOK order, and eagerly dispatches the pickup when it becomes the head.
func (c *Car) EnqueueCall(call elevwire.CallRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := c.direction
	if dir == elevconsts.Idle {
		if elevfloor.Compare(c.current, call.Source) < 0 {
			dir = elevconsts.Up
		} else {
			dir = elevconsts.Down
		}
		c.direction = dir
	}

	travel := elevconsts.Down
	if elevfloor.Compare(call.Source, call.Destination) < 0 {
		travel = elevconsts.Up
	}

	fromIndex := c.stops.insertFrom(Stop{Floor: call.Source, Direction: dir}, dir)
	c.stops.insertTo(Stop{Floor: call.Destination, Direction: travel}, fromIndex)

	if fromIndex == 0 {
		c.dispatchHead()
	}
}

// dispatchHead sends the current head as the car's next destination.
// Called with the car mutex held. A send failure is left for the reader
// side to notice; the record already reflects the intended destination.
func (c *Car) dispatchHead() {
	head := c.stops.head()
	if err := elevwire.Send(c.conn, elevwire.FloorDirective(head.Floor)); err != nil {
		Log.Warn().Msgf("Car %s: failed to send FLOOR %s: %v", c.name, head.Floor, err)
	}
	c.destination = head.Floor
}

// serves reports whether both floors lie within the car's range.
func (c *Car) serves(src, dst elevfloor.Label) bool {
	return elevfloor.InRange(src, c.lowest, c.highest) &&
		elevfloor.InRange(dst, c.lowest, c.highest)
}

// distance is the proximity metric for selection.
func (c *Car) distance(src elevfloor.Label) int {
	d := elevfloor.Ordinal(c.current) - elevfloor.Ordinal(src)
	if d < 0 {
		d = -d
	}
	return d
}

// CarSnapshot is a detached copy of a car record for inspection.
type CarSnapshot struct {
	Name        string
	Lowest      elevfloor.Label
	Highest     elevfloor.Label
	Status      elevconsts.DoorStatus
	Current     elevfloor.Label
	Destination elevfloor.Label
	Direction   elevconsts.Direction
	Stops       []Stop
}

// Fleet is the set of connected cars, capped at a fixed capacity.
type Fleet struct {
	mu   sync.Mutex
	cap  int
	cars []*Car
}

func NewFleet(capacity int) *Fleet {
	return &Fleet{cap: capacity}
}

// Add registers a car, failing when the fleet is at capacity.
func (f *Fleet) Add(c *Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cars) >= f.cap {
		return ErrFleetFull
	}
	f.cars = append(f.cars, c)
	return nil
}

// Remove splices the car out of the fleet and frees its stop list. The
// caller closes the socket.
func (f *Fleet) Remove(c *Car) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, have := range f.cars {
		if have == c {
			f.cars = append(f.cars[:i], f.cars[i+1:]...)
			break
		}
	}
	c.mu.Lock()
	c.stops = stopList{}
	c.mu.Unlock()
}

// Select picks the car for a call: among cars whose range covers both
// floors, the one closest to the source, ties broken by fleet order.
func (f *Fleet) Select(call elevwire.CallRequest) *Car {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *Car
	bestDistance := 0
	for _, c := range f.cars {
		c.mu.Lock()
		ok := c.serves(call.Source, call.Destination)
		d := c.distance(call.Source)
		c.mu.Unlock()
		if !ok {
			continue
		}
		if best == nil || d < bestDistance {
			best = c
			bestDistance = d
		}
	}
	return best
}

// Size returns the number of connected cars.
func (f *Fleet) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cars)
}

// Snapshot detaches a deep copy of every car record, so callers can
// inspect or log the fleet without holding its locks.
func (f *Fleet) Snapshot() []CarSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]CarSnapshot, 0, len(f.cars))
	for _, c := range f.cars {
		c.mu.Lock()
		snap := CarSnapshot{
			Name:        c.name,
			Lowest:      c.lowest,
			Highest:     c.highest,
			Status:      c.status,
			Current:     c.current,
			Destination: c.destination,
			Direction:   c.direction,
		}
		if err := deepcopy.Copy(&snap.Stops, c.stops.stops); err != nil {
			Log.Error().Msgf("fleet snapshot: %v", err)
		}
		c.mu.Unlock()
		out = append(out, snap)
	}
	return out
}
