package main

import (
	"os"

	apicmder "github.com/studybuddyai/buddy/cmd/buddy/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "buddyapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .buddy/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
