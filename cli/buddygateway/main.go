package main

import (
	"fmt"
	"os"

	gatewaycmder "github.com/studybuddyai/buddy/cmd/buddy/serve/gateway"
)

func main() {
	cmd := gatewaycmder.NewGatewayCmd()

	cmd.Use = "buddygateway"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .buddy/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
