//go:build !debug

// Package debug provides assertion helpers that compile to no-ops in
// release builds and panic in debug builds (build tag "debug").
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func Func(_ func())                      {}
