//go:build !debug

package main

// debugLog is a no-op in release builds.
func debugLog(format string, args ...any) {}
