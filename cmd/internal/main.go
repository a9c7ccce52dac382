package main

import (
	"fmt"
	"os"

	"github.com/christian-bunn/elevator-control-system/internal/elevpanel"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s {car name} {operation}\n", os.Args[0])
		os.Exit(1)
	}

	carName := os.Args[1]
	operation := os.Args[2]

	region, err := elevpanel.Attach(carName)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer region.Close()

	if err := elevpanel.Apply(region, operation); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
