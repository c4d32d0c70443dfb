package main

import (
	"fmt"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "costgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	subcmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(args)
	case "context":
		return cmdContext(args)
	case "status":
		return cmdStatus(args)
	case "version":
		fmt.Println(version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nUsage: costgate [serve|context|status|version]", subcmd)
	}
}
