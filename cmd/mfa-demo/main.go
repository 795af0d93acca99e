// Copyright (c) 2025 Justin Cranford
//

// Package main provides the mfa-demo entry point.
package main

import (
	"os"

	mfacoreCmd "mfacore/internal/cmd"
)

func main() {
	os.Exit(mfacoreCmd.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
