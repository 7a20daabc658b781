/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// gesturedeckctl is the gesture deck's operator CLI: it starts the
// mixer core's control-plane process (serve), replays a synthetic hand
// track through the gesture pipeline for demos and smoke tests
// (simulate), and validates a gesture mapping profile file (profile
// validate). The rootCmd/init()/AddCommand wiring mirrors
// cmd/grimnirradio's subcommand layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gesturedeckctl",
	Short: "Operate the gesture-controlled multi-deck mixer core",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
