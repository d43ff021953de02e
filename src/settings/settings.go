// Package settings holds esedbexport's command-line configuration as a
// package-level singleton, the same GetSettings()/sync.Once shape
// SyndrDB's src/settings/settings.go uses for its server arguments.
package settings

import "sync"

// Arguments is esedbexport's parsed CLI surface.
type Arguments struct {
	// Target is the path to the .edb file to read (-t/--target).
	Target string
	// Table restricts export to one table by name; empty means all tables
	// (-T/--table).
	Table string
	// CodePage, when non-zero, replaces the catalog's codepage for every
	// column decode; 0 keeps the catalog's codepage (-c/--codepage).
	CodePage uint16
	// Mode selects the output: "tables" (names only), or the records of
	// every table (or of -T's table) as "hex", "text" (escaped text) or
	// "ejson" (MongoDB Extended JSON) (-m/--mode).
	Mode string
	// LogFile is an additional log output path; empty means stdout only
	// (-l/--logfile).
	LogFile string

	Debug   bool // -debug
	Verbose bool // -v/--verbose

	CachePages int  // -cache-pages: page cache capacity, 0 disables
	CacheNodes int  // -cache-nodes: decoded-node cache capacity, 0 disables
	NoCache    bool // -no-cache: force both caches off regardless of capacity
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the global settings instance, built with defaults on
// first call.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{
			Mode:       "tables",
			CachePages: 256,
			CacheNodes: 256,
		}
	})
	return instance
}

// EffectiveCacheCapacities applies -no-cache, returning (pages, nodes) to
// pass to the page store / node cache constructors.
func (a *Arguments) EffectiveCacheCapacities() (pages, nodes int) {
	if a.NoCache {
		return 0, 0
	}
	return a.CachePages, a.CacheNodes
}
