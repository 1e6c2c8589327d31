//go:build mage

// Package main provides build targets for veilmarket using Mage.
//
// Usage:
//
//	mage build      Compile the veilmarket binary to bin/
//	mage test:all   Run all tests
//	mage test:race  Run all tests with the race detector
//	mage test:cover Write a coverage profile to bin/coverage.out
//	mage lint       Run golangci-lint
//	mage demo       Build, then init and seed a throwaway workspace
//	mage clean      Remove build artifacts
//	mage install    Install veilmarket to GOPATH/bin
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "veilmarket"
	binaryDir  = "bin"
	cmdDir     = "./cmd/veilmarket"
	modulePath = "github.com/mesh-intelligence/veilmarket"
)

// ldflags stamps the version from VERSION, or from git describe.
func ldflags() string {
	version := os.Getenv("VERSION")
	if version == "" {
		out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
		if err == nil {
			version = strings.TrimPrefix(strings.TrimSpace(out), "v")
		}
	}
	if version == "" {
		return ""
	}
	return "-X " + modulePath + "/internal/cli.Version=" + version
}

// Build compiles the veilmarket binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Demo builds the binary, then initializes and seeds a workspace in a
// temporary directory and browses it as the seeded buyer.
func Demo() error {
	mg.Deps(Build)
	dir, err := os.MkdirTemp("", "veilmarket-demo-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	configDir := filepath.Join(dir, ".veilmarket")
	for _, args := range [][]string{
		{"init"},
		{"seed"},
		{"listing", "browse", "--as", "user-bob"},
	} {
		if err := sh.RunV(bin, append([]string{"--config-dir", configDir}, args...)...); err != nil {
			return err
		}
	}
	return nil
}
