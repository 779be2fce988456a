// Package pathguard validates that the directories jsonsplit writes
// temp/shard files into are not catastrophic targets (filesystem root, a
// handful of root-level system directories). It is adapted from the
// teacher's internal/safety package, which blocked deletion of
// SIP-protected macOS paths: the Clean+EvalSymlinks+prefix-blocklist
// mechanics carry over unchanged, repointed from "don't delete this" to
// "don't write a temp/shard tree under this."
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// blockedPrefixes lists root-level directories that must never become the
// parent of a tmpdir or split-prefix tree. Unlike the teacher's SIP list,
// there are no macOS-specific exceptions here — this is a generic
// last-resort guard against misconfiguration, not a security boundary.
var blockedPrefixes = []string{
	"/",
	"/bin",
	"/sbin",
	"/usr",
	"/etc",
	"/System",
}

// Check resolves path (Clean + best-effort EvalSymlinks) and returns a
// *jsonerr.BadConfigError naming purpose (e.g. "tmpdir", "split-prefix") if
// it is, or resolves inside, a blocked directory. A nil return means the
// path is safe to write under.
func Check(path, purpose string) error {
	if path == "" {
		return nil
	}
	resolved := resolve(path)

	for _, prefix := range blockedPrefixes {
		if prefix == "/" {
			if resolved == "/" {
				return &jsonerr.BadConfigError{Reason: purpose + " resolves to filesystem root"}
			}
			continue
		}
		if pathHasPrefix(resolved, prefix) {
			return &jsonerr.BadConfigError{Reason: purpose + " resolves under protected path " + prefix}
		}
	}
	return nil
}

// resolve mirrors the teacher's best-effort symlink resolution: try the
// path itself, fall back to resolving its parent directory (so ancestor
// symlinks still apply to a not-yet-created path), and fall back again to
// the literal cleaned path if neither resolves.
func resolve(path string) string {
	cleaned := filepath.Clean(path)

	resolved, err := filepath.EvalSymlinks(cleaned)
	if err == nil {
		return filepath.Clean(resolved)
	}
	if !os.IsNotExist(err) {
		return filepath.Clean(cleaned)
	}

	resolvedDir, dirErr := filepath.EvalSymlinks(filepath.Dir(cleaned))
	if dirErr != nil {
		return cleaned
	}
	return filepath.Clean(filepath.Join(resolvedDir, filepath.Base(cleaned)))
}

// pathHasPrefix reports whether path equals prefix or is a descendant of
// it, avoiding false positives like "/Systems" matching "/System".
func pathHasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}
