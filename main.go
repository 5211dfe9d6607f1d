package main

import (
	// Board timezones resolve even on hosts without zoneinfo.
	_ "time/tzdata"

	"github.com/knockmap/knockmap/cmd"
)

func main() {
	cmd.Execute()
}
