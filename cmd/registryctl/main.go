// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

// Command registryctl is a command line client for the file registry.
package main

import (
	"fmt"
	"os"
)

// Version is set via ldflags during build
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
