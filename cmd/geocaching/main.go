// Command geocaching serves the geocaching map and manages its dataset.
package main

import (
	"os"
)

func main() {
	if err := rootCommand(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
