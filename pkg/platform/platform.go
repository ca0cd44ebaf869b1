// Package platform picks the storage backend that suits the host runtime.
//
// Mobile runtimes only offer a private sandbox directory, so they get the
// filesystem backend; everything else gets the embedded badger store. The
// choice is made once, by config.CreateBackend.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Backend names a storage backend implementation.
type Backend string

const (
	Auto       Backend = "auto"
	Badger     Backend = "badger"
	Filesystem Backend = "filesystem"
	Memory     Backend = "memory"
)

// Detect returns the backend for the running GOOS.
func Detect() Backend {
	return detect(runtime.GOOS)
}

func detect(goos string) Backend {
	if IsMobile(goos) {
		return Filesystem
	}
	return Badger
}

// IsMobile reports whether goos is a mobile runtime.
func IsMobile(goos string) bool {
	switch goos {
	case "android", "ios":
		return true
	default:
		return false
	}
}

// Resolve maps a configured storage type to a concrete backend. Empty and
// "auto" fall through to Detect.
func Resolve(requested string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(requested))); b {
	case "", Auto:
		return Detect(), nil
	case Badger, Filesystem, Memory:
		return b, nil
	default:
		return "", fmt.Errorf("unknown storage type %q", requested)
	}
}

// DefaultDataDir returns the directory holding downloaded content:
// $XDG_DATA_HOME/tunecache, else ~/.local/share/tunecache.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tunecache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "tunecache-data"
	}
	return filepath.Join(home, ".local", "share", "tunecache")
}
