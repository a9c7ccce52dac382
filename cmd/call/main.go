package main

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevconfig"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevwire"
)

const DIAL_TIMEOUT = 2 * time.Second

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s {source floor} {destination floor}\n", os.Args[0])
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2]))
}

func run(source, destination string) int {
	src, srcErr := elevfloor.Parse(source)
	dst, dstErr := elevfloor.Parse(destination)
	if srcErr != nil || dstErr != nil {
		fmt.Println("Invalid floor(s) specified.")
		return 1
	}
	if elevfloor.Compare(src, dst) == 0 {
		fmt.Println("You are already on that floor!")
		return 1
	}

	elevconfig.LoadEnv()

	conn, err := net.DialTimeout("tcp", elevconfig.ControllerAddress(), DIAL_TIMEOUT)
	if err != nil {
		fmt.Println("Unable to connect to elevator system.")
		return 1
	}
	defer conn.Close()

	call := elevwire.CallRequest{Source: src, Destination: dst}
	if err := elevwire.Send(conn, call.String()); err != nil {
		fmt.Println("Unable to connect to elevator system.")
		return 1
	}

	reply, err := elevwire.Receive(conn)
	if err != nil {
		fmt.Println("Unable to connect to elevator system.")
		return 1
	}

	switch {
	case strings.HasPrefix(reply, "CAR "):
		fmt.Printf("Car %s is arriving.\n", strings.TrimPrefix(reply, "CAR "))
	case reply == elevwire.MSG_UNAVAILABLE:
		fmt.Println("Sorry, no car is available to take this request.")
	default:
		fmt.Println("Unexpected response from elevator system.")
	}
	return 0
}
