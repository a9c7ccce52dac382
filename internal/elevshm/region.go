// Package elevshm maps the per-car shared record into the process and
// provides the cross-process mutex and condition variable guarding it.
//
// The record lives in a POSIX shared memory object named /car<name>. The
// first two words are futexes: a mutex word and a condition sequence word.
// Every other field must only be touched with the mutex held.
package elevshm

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
)

const (
	SHM_DIR  = "/dev/shm"
	SHM_SIZE = 64

	FLOOR_STR_SIZE  = 4
	STATUS_STR_SIZE = 8

	offMutex       = 0
	offCondSeq     = 4
	offCurrent     = 8
	offDestination = 12
	offStatus      = 16
	offFlags       = 24
)

// Flag identifies one of the record's single-byte flags, in layout order.
type Flag int

const (
	OpenButton Flag = iota
	CloseButton
	DoorObstruction
	Overload
	EmergencyStop
	IndividualServiceMode
	EmergencyMode
	flagCount
)

// State is a plain copy of the record's data fields, taken under the mutex.
type State struct {
	CurrentFloor          elevfloor.Label
	DestinationFloor      elevfloor.Label
	Status                elevconsts.DoorStatus
	OpenButton            byte
	CloseButton           byte
	DoorObstruction       byte
	Overload              byte
	EmergencyStop         byte
	IndividualServiceMode byte
	EmergencyMode         byte
}

// Region is one process's mapping of a car's shared record.
type Region struct {
	carName string
	path    string
	data    []byte
}

// ObjectName returns the shared memory object name for a car, e.g. "/carA".
func ObjectName(carName string) string {
	return "/car" + carName
}

func objectPath(carName string) string {
	return SHM_DIR + "/car" + carName
}

// Create makes a fresh shared record for the named car. Creation is
// exclusive: a leftover object from a previous run is an error.
func Create(carName string) (*Region, error) {
	path := objectPath(carName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("create shared memory %s: %w", ObjectName(carName), err)
	}
	defer f.Close()

	if err := f.Truncate(SHM_SIZE); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("size shared memory %s: %w", ObjectName(carName), err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, SHM_SIZE, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("map shared memory %s: %w", ObjectName(carName), err)
	}

	return &Region{carName: carName, path: path, data: data}, nil
}

// Open attaches to an existing car record created by the car driver.
func Open(carName string) (*Region, error) {
	path := objectPath(carName)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open shared memory %s: %w", ObjectName(carName), err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, SHM_SIZE, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map shared memory %s: %w", ObjectName(carName), err)
	}

	return &Region{carName: carName, path: path, data: data}, nil
}

// CarName returns the name the region was created or opened with.
func (r *Region) CarName() string {
	return r.carName
}

// Close unmaps the record from this process.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	return unix.Munmap(data)
}

// Unlink removes the shared memory object. Only the car driver calls this.
func (r *Region) Unlink() error {
	return os.Remove(r.path)
}

func (r *Region) readString(off, size int) string {
	raw := r.data[off : off+size]
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		return string(raw[:i])
	}
	return string(raw)
}

func (r *Region) writeString(off, size int, s string) {
	field := r.data[off : off+size]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
}

// The accessors below require the mutex to be held.

func (r *Region) CurrentFloor() elevfloor.Label {
	return elevfloor.Label(r.readString(offCurrent, FLOOR_STR_SIZE))
}

func (r *Region) SetCurrentFloor(l elevfloor.Label) {
	r.writeString(offCurrent, FLOOR_STR_SIZE, string(l))
}

func (r *Region) DestinationFloor() elevfloor.Label {
	return elevfloor.Label(r.readString(offDestination, FLOOR_STR_SIZE))
}

func (r *Region) SetDestinationFloor(l elevfloor.Label) {
	r.writeString(offDestination, FLOOR_STR_SIZE, string(l))
}

// RawStatus returns the status field without interpretation, for the
// safety monitor's consistency checks.
func (r *Region) RawStatus() string {
	return r.readString(offStatus, STATUS_STR_SIZE)
}

func (r *Region) Status() elevconsts.DoorStatus {
	return elevconsts.DoorStatus(r.RawStatus())
}

func (r *Region) SetStatus(s elevconsts.DoorStatus) {
	r.writeString(offStatus, STATUS_STR_SIZE, string(s))
}

func (r *Region) Flag(f Flag) byte {
	return r.data[offFlags+int(f)]
}

func (r *Region) FlagSet(f Flag) bool {
	return r.Flag(f) == 1
}

func (r *Region) SetFlag(f Flag, v byte) {
	r.data[offFlags+int(f)] = v
}

// Snapshot copies every data field out of the record.
func (r *Region) Snapshot() State {
	return State{
		CurrentFloor:          r.CurrentFloor(),
		DestinationFloor:      r.DestinationFloor(),
		Status:                r.Status(),
		OpenButton:            r.Flag(OpenButton),
		CloseButton:           r.Flag(CloseButton),
		DoorObstruction:       r.Flag(DoorObstruction),
		Overload:              r.Flag(Overload),
		EmergencyStop:         r.Flag(EmergencyStop),
		IndividualServiceMode: r.Flag(IndividualServiceMode),
		EmergencyMode:         r.Flag(EmergencyMode),
	}
}

// Initialise sets the record to its boot state: parked at the lowest floor
// with the doors closed and every flag cleared.
func (r *Region) Initialise(lowest elevfloor.Label) {
	r.SetCurrentFloor(lowest)
	r.SetDestinationFloor(lowest)
	r.SetStatus(elevconsts.Closed)
	for f := Flag(0); f < flagCount; f++ {
		r.SetFlag(f, 0)
	}
}
