// Package config is a read-mostly configuration snapshot, grounded on
// the teacher's cmn.Rom pattern (cmn/rom.go): a package-level pointer
// swapped atomically on load, read without locking everywhere else.
// No other package of this module reads the snapshot: the file source
// takes its window size from its own "window-size" parameter, and the
// muxer, graph and logger take no settings from here.
package config

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

type Config struct {
	// LogLevel gates verbose decode/muxer tracing; 0 disables it.
	LogLevel int

	// MediumWindowSize is the page-aligned window size the single-file
	// medium slides over the underlying file (spec §4.1).
	MediumWindowSize int

	// MuxerBatchCapacity is the muxer batch-size setting; muxer.Next
	// uses only the capacity its own caller passes in.
	MuxerBatchCapacity int

	// IndexCachePath is the buntdb file backing the packet-index cache
	// (SPEC_FULL §B). Empty disables the on-disk cache (in-memory only).
	IndexCachePath string

	// InactivityTimeout is the idle-upstream timeout setting for
	// message-iterator-inactivity messages (spec §3.3); neither the
	// graph nor the file source reads it.
	InactivityTimeout time.Duration
}

const (
	dfltMediumWindowSize   = 16 << 20 // 16MiB
	dfltMuxerBatchCapacity = 256
	dfltInactivityTimeout  = 200 * time.Millisecond
)

func defaults() *Config {
	return &Config{
		MediumWindowSize:   dfltMediumWindowSize,
		MuxerBatchCapacity: dfltMuxerBatchCapacity,
		InactivityTimeout:  dfltInactivityTimeout,
	}
}

var global atomic.Pointer[Config]

func init() { global.Store(defaults()) }

// Get returns the current read-mostly snapshot. Never mutate the
// returned pointer's fields; call Set to install a new snapshot.
func Get() *Config { return global.Load() }

// Set installs a new configuration snapshot atomically.
func Set(c *Config) { global.Store(c) }

// FromEnv overlays environment variables onto the current defaults and
// installs the result, mirroring the teacher's habit of letting ops
// override read-mostly knobs without a restart-time flag.
func FromEnv() *Config {
	c := *defaults()
	if v := os.Getenv("CTF_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogLevel = n
		}
	}
	if v := os.Getenv("CTF_MEDIUM_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MediumWindowSize = n
		}
	}
	if v := os.Getenv("CTF_MUXER_BATCH_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MuxerBatchCapacity = n
		}
	}
	if v := os.Getenv("CTF_INDEX_CACHE_PATH"); v != "" {
		c.IndexCachePath = v
	}
	if v := os.Getenv("CTF_INACTIVITY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.InactivityTimeout = time.Duration(n) * time.Millisecond
		}
	}
	Set(&c)
	return &c
}
