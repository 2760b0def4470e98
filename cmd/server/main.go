// Package main is the entry point for the VPanel server. The default
// command loads configuration, establishes database connections, wires
// together all plugins and starts the HTTP server.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
