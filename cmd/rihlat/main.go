// Command rihlat answers public-transit questions for the UAE from GTFS data,
// geocoding and transit routing.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		renderError(os.Stderr, err)
		os.Exit(1)
	}
}
