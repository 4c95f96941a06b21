package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meal-planner/internal/app"
	"meal-planner/internal/cli"
	"meal-planner/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Library logging is noise on an interactive terminal.
	if os.Getenv("MEALPLAN_DEBUG") == "" {
		log.SetOutput(io.Discard)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	root := cli.NewRootCmd(a)
	root.SetContext(ctx)
	return cli.Execute(root, os.Stderr)
}
