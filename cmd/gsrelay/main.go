/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command gsrelay is the relay binary: a server half that waits for a GS
// connection and a client half that dials one, bridging each to a local
// sink (stdio, a spawned command, a fixed TCP destination, a SOCKS proxy,
// or locally accepted TCP connections).
package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sabouaram/gsrelay/internal/client"
	"github.com/sabouaram/gsrelay/internal/config"
	"github.com/sabouaram/gsrelay/internal/libctx"
	"github.com/sabouaram/gsrelay/internal/logger"
	"github.com/sabouaram/gsrelay/internal/server"
)

// watchdogKey names the values stashed in the watchdog's libctx.Config.
type watchdogKey string

const watchdogRestarts watchdogKey = "restarts"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.New()
	v := viper.New()
	v.SetEnvPrefix("GSRELAY")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "gsrelay",
		Short: "Relay TCP-shaped traffic between two NAT'd peers over a GS tunnel",
	}

	if err := cfg.RegisterFlags(root, v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	exitCode := 0
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logger.New()
		log.SetQuiet(cfg.Quiet || (cfg.Daemon && cfg.LogFile == ""))
		if cfg.LogFile != "" {
			f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
			if err != nil {
				return fmt.Errorf("open logfile: %w", err)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		if cfg.Daemon {
			exitCode = runWatchdog()
			return nil
		}

		exitCode = runOnce(cfg, log)
		return nil
	}

	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func runOnce(cfg *config.Config, log logger.Logger) int {
	if cfg.Listen {
		srv, err := server.New(cfg, log)
		if err != nil {
			log.Error("server init failed", logger.Fields{"error": err.Error()})
			return 1
		}
		return srv.Run()
	}

	cli, err := client.New(cfg, log)
	if err != nil {
		log.Error("client init failed", logger.Fields{"error": err.Error()})
		return 1
	}
	return cli.Run()
}

// runWatchdog re-execs the same command without -daemon, restarting the
// child whenever it exits non-zero, per spec.md §12's supplemented
// daemon/watchdog mode. A SIGTERM/SIGINT to the watchdog is forwarded to
// the child and then propagates as this process's own exit.
func runWatchdog() int {
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a == "-D" || a == "--daemon" {
			continue
		}
		args = append(args, a)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT)

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "watchdog: locate executable:", err)
		return 1
	}

	// instanceTag identifies this watchdog's restart lifetime in the logs:
	// one process may restart its child many times, and operators grepping
	// a shared log need to tell one watchdog's restarts from another's
	// across multiple daemonized invocations.
	instanceTag := uuid.New().String()

	// state carries the restart counter and the shutdown signal across
	// loop iterations without package-level globals; Cancel() stops the
	// loop as soon as a signal arrives.
	state := libctx.New[watchdogKey](nil)
	defer state.Cancel()
	state.Store(watchdogRestarts, 0)

	go func() {
		select {
		case <-sigc:
			state.Cancel()
		case <-state.Done():
		}
	}()

	for state.Err() == nil {
		cmd := exec.Command(self, args...)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := cmd.Start(); err != nil {
			fmt.Fprintln(os.Stderr, "watchdog: start child:", err)
			return 1
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-state.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			<-done
			return 0
		case err := <-done:
			if err == nil {
				return 0
			}
			restarts := 0
			if n, _ := state.Load(watchdogRestarts); n != nil {
				restarts = n.(int) + 1
				state.Store(watchdogRestarts, restarts)
			}
			fmt.Fprintf(os.Stderr, "watchdog[%s]: child exited (%v), restarting (restart #%d)\n", instanceTag, err, restarts)
		}
	}
	return 0
}
