package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("skiff %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting skiff",
		"version", Version,
		"command", command,
		"config", *configPath,
	)

	ctx := context.Background()

	switch command {
	case "plan":
		return runPlan(ctx, cfg, logger)
	case "up":
		return runUp(ctx, cfg, logger)
	case "serve":
		return runServe(ctx, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected plan, up or serve)\n", command)
		return ExitConfigError
	}
}
