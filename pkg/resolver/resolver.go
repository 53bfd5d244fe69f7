// Package resolver maps raw virtual addresses onto module-relative display
// tokens and raw process memory, the address resolver described as
// component D: a thin read-only view over a parsed dump's ModuleList and
// memory streams.
package resolver

import (
	"fmt"
	"strings"

	"github.com/jloutsch/minidumptruck/pkg/minidump"
	"github.com/jloutsch/minidumptruck/pkg/minidump/streams"
)

// Resolver answers address-to-module and address-to-bytes queries over a
// single parsed dump. It holds no state of its own beyond the dump it
// borrows.
type Resolver struct {
	dump *minidump.ParsedDump
}

// New returns a Resolver over dump.
func New(dump *minidump.ParsedDump) *Resolver {
	return &Resolver{dump: dump}
}

// ModuleContaining returns the first module whose [base, base+size) range
// contains addr.
func (r *Resolver) ModuleContaining(addr uint64) (*streams.ModuleInfo, bool) {
	return r.dump.ModuleContaining(addr)
}

// Resolve renders addr as "<shortName>+0x<hexOffset>" when a containing
// module exists, or "0x<16-hex-zero-padded-addr>" otherwise.
func (r *Resolver) Resolve(addr uint64) string {
	if mod, ok := r.dump.ModuleContaining(addr); ok {
		offset := addr - mod.Base
		return fmt.Sprintf("%s+0x%x", ShortName(mod.Name), offset)
	}
	return fmt.Sprintf("0x%016x", addr)
}

// ShortName returns the substring of a module's path after the last '\'
// or '/' separator, preserving original case.
func ShortName(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ReadAt reads up to n bytes of captured process memory at addr, trying
// Memory64List first and then the legacy MemoryList stream, returning the
// largest available slice no larger than n.
func (r *Resolver) ReadAt(addr uint64, n int) ([]byte, bool) {
	return r.dump.ReadAt(addr, n)
}
