// testpad is an interactive surrogate for the in-car peripherals: it
// toggles the sensor flags and presses the buttons of a running car's
// shared record from the keyboard.
package main

import (
	"fmt"
	"os"

	"github.com/eiannone/keyboard"
	"github.com/xyproto/randomstring"

	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

const SESSION_ID_LEN = 10

var Logger = logger.GetLogger()

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s {car name}\n", os.Args[0])
		os.Exit(1)
	}

	carName := os.Args[1]
	region, err := elevshm.Open(carName)
	if err != nil {
		fmt.Printf("Unable to access car %s.\n", carName)
		os.Exit(1)
	}
	defer region.Close()

	session := randomstring.EnglishFrequencyString(SESSION_ID_LEN)
	Logger.Info().Msgf("Test pad session %s attached to car %s", session, carName)

	if err := keyboard.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open keyboard: %v\n", err)
		os.Exit(1)
	}
	defer keyboard.Close()

	fmt.Println("o: open button  c: close button  s: emergency stop")
	fmt.Println("b: toggle obstruction  v: toggle overload  p: print state  q: quit")

	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		if key == keyboard.KeyCtrlC || char == 'q' {
			return
		}

		region.Lock()
		switch char {
		case 'o':
			region.SetFlag(elevshm.OpenButton, 1)
		case 'c':
			region.SetFlag(elevshm.CloseButton, 1)
		case 's':
			region.SetFlag(elevshm.EmergencyStop, 1)
		case 'b':
			region.SetFlag(elevshm.DoorObstruction, 1-region.Flag(elevshm.DoorObstruction))
		case 'v':
			region.SetFlag(elevshm.Overload, 1-region.Flag(elevshm.Overload))
		case 'p':
			fmt.Printf("%+v\n", region.Snapshot())
		default:
			region.Unlock()
			continue
		}
		region.Broadcast()
		region.Unlock()
	}
}
