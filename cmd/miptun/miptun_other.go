// Copyright (c) GoPMIP Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !linux

package main

import (
	"fmt"
	"os"
	"runtime"
)

func main() {
	fmt.Fprintf(os.Stderr, "miptun drives the Linux ip6_tunnel module and does not run on %s\n", runtime.GOOS)
	os.Exit(1)
}
