// Copyright (c) 2025, Wesley Brown
// All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "deli",
	Short:   "A streaming HTTP load and stress testing engine",
	Version: version,
	Long: `deli drives concurrent virtual users against an HTTP target,
streams latency/throughput metrics through a T-Digest percentile sketch,
and evaluates the result against a configurable SLA.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// ExecuteWithExit is the same as Execute but exits the process on error.
// cmd/deli does not call it; its main goes through Main and Execute.
func ExecuteWithExit() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(loadCmd)
	RootCmd.AddCommand(stressCmd)
}
