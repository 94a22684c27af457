package ffi

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Symbol loading and native memory
// ---------------------------------------------------------------------------

// Library is an opaque handle to an open shared library.
type Library uintptr

// SymbolLoader opens libraries and looks up symbols in them.
type SymbolLoader interface {
	// Open returns a handle for the named library. The empty name is the
	// running process.
	Open(name string) (Library, error)
	Lookup(lib Library, name string) (uintptr, bool)
	// Default returns the handle of the global search scope.
	Default() Library
}

// Memory gives the bridge access to native memory.
type Memory interface {
	Read(addr uintptr, n int) ([]byte, error)
	ReadCString(addr uintptr) (string, error)
	// CString returns a stable NUL-terminated copy of s.
	CString(s string) uintptr
	WritePointer(addr uintptr, v uintptr) error
}

// SymbolTable is an in-memory SymbolLoader. Library 0 is the global scope;
// looking a name up there also searches every defined library.
type SymbolTable struct {
	mu      sync.RWMutex
	names   []string
	symbols []map[string]uintptr
}

// NewSymbolTable creates a table holding only the empty global scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{names: []string{""}, symbols: []map[string]uintptr{{}}}
}

// Define adds a symbol to the named library, creating it if needed. The
// empty library name is the global scope.
func (s *SymbolTable) Define(lib, name string, addr uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(lib)
	if i < 0 {
		s.names = append(s.names, lib)
		s.symbols = append(s.symbols, map[string]uintptr{})
		i = len(s.names) - 1
	}
	s.symbols[i][name] = addr
}

func (s *SymbolTable) index(lib string) int {
	for i, n := range s.names {
		if n == lib {
			return i
		}
	}
	return -1
}

func (s *SymbolTable) Open(name string) (Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(name)
	if i < 0 {
		return 0, fmt.Errorf("library %q not found", name)
	}
	return Library(i), nil
}

func (s *SymbolTable) Lookup(lib Library, name string) (uintptr, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(lib) >= len(s.symbols) {
		return 0, false
	}
	if addr, ok := s.symbols[lib][name]; ok {
		return addr, true
	}
	if lib != 0 {
		return 0, false
	}
	for _, syms := range s.symbols[1:] {
		if addr, ok := syms[name]; ok {
			return addr, true
		}
	}
	return 0, false
}

func (s *SymbolTable) Default() Library { return 0 }
