package main

import (
	"os"

	"github.com/Faroukdata/fairsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
