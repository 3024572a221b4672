package plugin

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/otiai10/copy"
)

// FetchSource materializes a plugin's source into destDir: a local
// filesystem copy (otiai10/copy) when isLocalPath accepts source (a
// missing or non-directory local path is ErrSourceInvalid), otherwise a
// git clone (go-git/go-git/v5) of normalizeGitURL(source). Grounded on compozy-compozy's use of both otiai10/copy and
// go-git elsewhere in its dependency stack (go.mod), wired here to the one
// place spec.md actually needs source acquisition: plugin fetch (§4.4).
func FetchSource(source, destDir string) error {
	if isLocalPath(source) {
		info, err := os.Stat(source)
		if err != nil {
			return fmt.Errorf("%w: local plugin source %q: %s", ErrSourceInvalid, source, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: local plugin source %q is not a directory", ErrSourceInvalid, source)
		}
		if err := copy.Copy(source, destDir); err != nil {
			return fmt.Errorf("%w: failed to copy local plugin source: %s", ErrSourceInvalid, err)
		}
		return nil
	}

	url := normalizeGitURL(source)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create plugin source directory: %s", ErrSourceInvalid, err)
	}
	_, err := git.PlainClone(destDir, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to clone plugin source %q: %s", ErrSourceInvalid, source, err)
	}
	return nil
}

// isLocalPath reports whether source is treated as a local filesystem
// path rather than a remote git reference: any source starting with "."
// or "/" (whether or not it exists), or any other source that names
// something already present on disk.
func isLocalPath(source string) bool {
	if strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/") {
		return true
	}
	_, err := os.Stat(source)
	return err == nil
}

// normalizeGitURL expands an "owner/repo" shorthand into a full GitHub
// clone URL; anything already carrying a scheme or host is passed
// through unchanged.
func normalizeGitURL(source string) string {
	if strings.Contains(source, "://") || strings.HasPrefix(source, "git@") {
		return source
	}
	if strings.Count(source, "/") == 1 && !strings.Contains(source, ".") {
		return "https://github.com/" + source + ".git"
	}
	return source
}
