package main

import (
	"os"

	buddycmder "github.com/studybuddyai/buddy/cmd/buddy"
)

func main() {
	cmd := buddycmder.NewBuddyCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
