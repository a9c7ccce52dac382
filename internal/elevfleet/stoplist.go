package elevfleet

import (
	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
)

// Stop is one pending floor on a car's schedule, tagged with the travel
// direction the stop serves.
type Stop struct {
	Floor     elevfloor.Label
	Direction elevconsts.Direction
}

// stopList is the per-car ordered schedule. Insertion preserves LOOK
// semantics: a stop goes in front of the first existing stop that lies
// farther along the direction of travel.
type stopList struct {
	stops []Stop
}

func (l *stopList) empty() bool {
	return len(l.stops) == 0
}

func (l *stopList) head() Stop {
	return l.stops[0]
}

func (l *stopList) pop() {
	l.stops = l.stops[1:]
}

// passes reports whether travelling in dir from a reaches b strictly after
// passing a, i.e. b is farther along dir than a.
func passes(dir elevconsts.Direction, a, b elevfloor.Label) bool {
	cmp := elevfloor.Compare(a, b)
	return (dir == elevconsts.Up && cmp < 0) || (dir == elevconsts.Down && cmp > 0)
}

// insertFrom places the pickup stop before the first stop farther along
// dir, appending otherwise. It returns the insertion index.
func (l *stopList) insertFrom(s Stop, dir elevconsts.Direction) int {
	i := 0
	for ; i < len(l.stops); i++ {
		if passes(dir, s.Floor, l.stops[i].Floor) {
			break
		}
	}
	l.insertAt(i, s)
	return i
}

// insertTo places the dropoff stop the same way, but only into the
// sublist after the pickup at fromIndex.
func (l *stopList) insertTo(s Stop, fromIndex int) {
	i := fromIndex + 1
	for ; i < len(l.stops); i++ {
		if passes(s.Direction, s.Floor, l.stops[i].Floor) {
			break
		}
	}
	l.insertAt(i, s)
}

func (l *stopList) insertAt(i int, s Stop) {
	l.stops = append(l.stops, Stop{})
	copy(l.stops[i+1:], l.stops[i:])
	l.stops[i] = s
}
