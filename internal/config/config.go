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

// Package config defines the relay's flag/config surface and binds it to
// cobra/viper the way the teacher's cobra package registers flags: every
// flag is declared once on the root command and mirrored into viper so it
// can equally come from a config file or environment variable.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of options driving one relay process.
type Config struct {
	Secret string // GS rendezvous identifier shared by both peers

	Listen bool // run as server: wait for the GS connection

	Port uint16 // client: local listen port (multi-session mode). server: fixed destination port
	Dest string // server: fixed destination host

	Exec string // server: spawn this command per session instead of a fixed dest/stdio

	Interactive bool // stdio forward: raw TTY mode + "~." escape watcher
	Socks       bool // server: local side is a SOCKS4/5 proxy

	// ReceiveOnly is -r: the session tears down as soon as GS reaches EOF,
	// without waiting for the local side to finish too.
	ReceiveOnly bool

	Daemon  bool   // re-exec under a watchdog that restarts on crash
	Quiet   bool   // suppress session open/close/statistics logging
	LogFile string // write logs here instead of stderr

	MaxPeers int // session table capacity

	// GSBind and GSConnect address the concrete TCP stand-in transport
	// (internal/gs) that plays the role of the real GS rendezvous, which
	// depends on infrastructure (a broker, NAT traversal) outside this
	// repository's scope. The server binds GSBind; the client dials
	// GSConnect. A real GS transport would derive both ends of this
	// rendezvous from Secret alone.
	GSBind    string
	GSConnect string
}

// New returns a Config with the teacher's usual zero-value defaults.
func New() *Config {
	return &Config{MaxPeers: 1024}
}

// RegisterFlags declares every flag on cmd's persistent flag set and binds
// each to viper under the same name, so GSRELAY_* environment variables
// and a config file both work without touching this function again.
func (c *Config) RegisterFlags(cmd *cobra.Command, v *viper.Viper) error {
	f := cmd.PersistentFlags()

	f.StringVarP(&c.Secret, "secret", "s", "", "GS rendezvous secret shared by both peers (required)")
	f.BoolVarP(&c.Listen, "listen", "l", false, "run as server: wait for the GS connection")
	f.Uint16VarP(&c.Port, "port", "p", 0, "client: local listen port (multi-session mode); server: fixed destination port")
	f.StringVarP(&c.Dest, "dest", "d", "", "server: fixed destination host")
	f.StringVarP(&c.Exec, "exec", "e", "", "server: command to spawn per session")
	f.BoolVarP(&c.Interactive, "interactive", "i", false, "stdio forward: raw TTY mode and \"~.\" disconnect")
	f.BoolVarP(&c.Socks, "socks", "S", false, "server: local side is a SOCKS4/5 proxy")
	f.BoolVarP(&c.ReceiveOnly, "receive-only", "r", false, "tear down as soon as GS reaches EOF, without waiting for the local side")
	f.BoolVarP(&c.Daemon, "daemon", "D", false, "re-exec under a watchdog that restarts on crash")
	f.BoolVarP(&c.Quiet, "quiet", "q", false, "suppress session open/close/statistics logging")
	f.StringVar(&c.LogFile, "logfile", "", "write logs here instead of stderr")
	f.IntVar(&c.MaxPeers, "max-peers", 1024, "session table capacity")
	f.StringVar(&c.GSBind, "gs-bind", ":7000", "server: address the GS transport stand-in listens on")
	f.StringVar(&c.GSConnect, "gs-connect", "", "client: address of the GS transport stand-in to dial")

	names := []string{"secret", "listen", "port", "dest", "exec", "interactive", "socks", "receive-only", "daemon", "quiet", "logfile", "max-peers", "gs-bind", "gs-connect"}
	for _, name := range names {
		if err := v.BindPFlag(name, f.Lookup(name)); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Validate applies the cross-flag rules spec.md §6/§7 describe: a secret
// is always required, and exactly one of exec/dest/socks may select the
// server's local sink (the remainder falls back to stdio forward).
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("config: -secret is required")
	}
	selectors := 0
	for _, set := range []bool{c.Exec != "", c.Dest != "", c.Socks} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return fmt.Errorf("config: -exec, -dest and -socks are mutually exclusive")
	}
	if c.Dest != "" && c.Port == 0 {
		return fmt.Errorf("config: -dest requires -port")
	}
	if !c.Listen && c.GSConnect == "" {
		return fmt.Errorf("config: client mode requires -gs-connect")
	}
	return nil
}
