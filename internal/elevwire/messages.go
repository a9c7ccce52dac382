package elevwire

import (
	"fmt"
	"strings"

	"github.com/christian-bunn/elevator-control-system/internal/elevconsts"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
)

// Message payload text as exchanged with the controller.
const (
	MSG_INDIVIDUAL_SERVICE = "INDIVIDUAL SERVICE"
	MSG_EMERGENCY          = "EMERGENCY"
	MSG_UNAVAILABLE        = "UNAVAILABLE"
)

// CarHandshake is the first message a car sends: its name and floor range.
type CarHandshake struct {
	Name    string
	Lowest  elevfloor.Label
	Highest elevfloor.Label
}

func (h CarHandshake) String() string {
	return fmt.Sprintf("CAR %s %s %s", h.Name, h.Lowest, h.Highest)
}

// ParseCarHandshake parses "CAR <name> <lowest> <highest>".
func ParseCarHandshake(payload string) (CarHandshake, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[0] != "CAR" {
		return CarHandshake{}, fmt.Errorf("malformed CAR message %q", payload)
	}
	low, err := elevfloor.Parse(fields[2])
	if err != nil {
		return CarHandshake{}, err
	}
	high, err := elevfloor.Parse(fields[3])
	if err != nil {
		return CarHandshake{}, err
	}
	if elevfloor.Compare(low, high) > 0 {
		return CarHandshake{}, fmt.Errorf("inverted floor range %s..%s", low, high)
	}
	return CarHandshake{Name: fields[1], Lowest: low, Highest: high}, nil
}

// StatusReport is the periodic car state update.
type StatusReport struct {
	Status      elevconsts.DoorStatus
	Current     elevfloor.Label
	Destination elevfloor.Label
}

func (s StatusReport) String() string {
	return fmt.Sprintf("STATUS %s %s %s", s.Status, s.Current, s.Destination)
}

// ParseStatusReport parses "STATUS <status> <current> <destination>".
func ParseStatusReport(payload string) (StatusReport, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[0] != "STATUS" {
		return StatusReport{}, fmt.Errorf("malformed STATUS message %q", payload)
	}
	cur, err := elevfloor.Parse(fields[2])
	if err != nil {
		return StatusReport{}, err
	}
	dest, err := elevfloor.Parse(fields[3])
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{Status: elevconsts.DoorStatus(fields[1]), Current: cur, Destination: dest}, nil
}

// CallRequest is a passenger journey request.
type CallRequest struct {
	Source      elevfloor.Label
	Destination elevfloor.Label
}

func (c CallRequest) String() string {
	return fmt.Sprintf("CALL %s %s", c.Source, c.Destination)
}

// ParseCallRequest parses "CALL <source> <destination>".
func ParseCallRequest(payload string) (CallRequest, error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 || fields[0] != "CALL" {
		return CallRequest{}, fmt.Errorf("malformed CALL message %q", payload)
	}
	src, err := elevfloor.Parse(fields[1])
	if err != nil {
		return CallRequest{}, err
	}
	dst, err := elevfloor.Parse(fields[2])
	if err != nil {
		return CallRequest{}, err
	}
	return CallRequest{Source: src, Destination: dst}, nil
}

// FloorDirective tells a car its next destination.
func FloorDirective(floor elevfloor.Label) string {
	return fmt.Sprintf("FLOOR %s", floor)
}

// ParseFloorDirective parses "FLOOR <floor>".
func ParseFloorDirective(payload string) (elevfloor.Label, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 || fields[0] != "FLOOR" {
		return "", fmt.Errorf("malformed FLOOR message %q", payload)
	}
	return elevfloor.Parse(fields[1])
}

// CarAssignment is the reply to a successful call.
func CarAssignment(name string) string {
	return fmt.Sprintf("CAR %s", name)
}
