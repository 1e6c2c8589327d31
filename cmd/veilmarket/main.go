// Package main provides the veilmarket CLI.
package main

import "github.com/mesh-intelligence/veilmarket/internal/cli"

func main() {
	cli.Execute()
}
