package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var devWatchDirs []string

// devCmd execs the child the same way runOnce does, inside a
// restart-on-change loop of its own (runWithWatcher), standing in for the
// reference implementation's watchfiles-based _Watcher (spec's cli
// surface names this the "dev" command). A change anywhere under the
// watched directories restarts the child; Ctrl-C/SIGTERM stops the loop.
var devCmd = &cobra.Command{
	Use:   "dev -- <command> [args...]",
	Short: "Run a service binary, restarting it on source changes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := devWatchDirs
		if len(dirs) == 0 {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dirs = []string{wd}
		}
		return runWithWatcher(dirs, args)
	},
}

func init() {
	devCmd.Flags().StringArrayVar(&devWatchDirs, "watch", nil, "directory to watch for changes (default: working directory)")
}

func runWithWatcher(dirs []string, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := addRecursive(watcher, dir); err != nil {
			return err
		}
	}

	cancel := make(chan os.Signal, 1)
	signal.Notify(cancel, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(cancel)

	for {
		c := exec.Command(args[0], args[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Env = childEnv()
		if err := c.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", args[0], err)
		}

		childDone := make(chan error, 1)
		go func() { childDone <- c.Wait() }()

		restart := waitForChangeOrExit(watcher, cancel, childDone)

		if c.ProcessState == nil && c.Process != nil {
			_ = c.Process.Signal(syscall.SIGTERM)
			<-childDone
		}

		if !restart {
			return nil
		}
		// debounce rapid successive fsnotify events for the same save.
		time.Sleep(100 * time.Millisecond)
		drainEvents(watcher)
	}
}

// waitForChangeOrExit blocks until a file changes, the process is
// interrupted, or the child exits on its own. It returns true only when a
// file change should trigger a restart.
func waitForChangeOrExit(watcher *fsnotify.Watcher, cancel <-chan os.Signal, childDone <-chan error) bool {
	select {
	case <-watcher.Events:
		return true
	case <-cancel:
		return false
	case <-childDone:
		return false
	}
}

func drainEvents(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-watcher.Events:
		default:
			return
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
