// Package main provides the beamform CLI.
package main

import (
	"fmt"
	"os"

	"github.com/beamform-go/beamform/config"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("beamform %s\n", version)
			return
		case "preset":
			path := "beamform.yaml"
			if len(os.Args) > 2 {
				path = os.Args[2]
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("wrote default preset to %s\n", path)
			return
		}
	}

	fmt.Println("beamform - pulse-echo image reconstruction for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version         Show version")
	fmt.Println("  preset [path]   Write the default imaging preset")
}
