package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd hosts a service process: it execs the given command, inheriting
// stdio, and forwards SIGINT/SIGTERM so the child's own runctx.Run can shut
// the service down cleanly. Where the reference implementation dynamically
// imports a Python "setup" callable by dotted path, Go has no equivalent;
// the idiomatic substitute is a separately built service binary, and this
// command becomes a thin process supervisor around it (devCmd execs its
// child the same way, in its own restart-on-change loop).
var runCmd = &cobra.Command{
	Use:                "run -- <command> [args...]",
	Short:              "Run a service binary, forwarding termination signals",
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(args)
	},
}

func runOnce(args []string) error {
	c := exec.Command(args[0], args[1:]...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Env = childEnv()

	if err := c.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", args[0], err)
	}

	notify := make(chan os.Signal, 1)
	signal.Notify(notify, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(notify)

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	select {
	case sig := <-notify:
		if c.Process != nil {
			_ = c.Process.Signal(sig)
		}
		return <-done
	case err := <-done:
		return err
	}
}
