// Package loader implements the Script Loader: resolving a
// script name to source text by searching configured directories with
// configured filename templates.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

// Loader resolves script names to source text.
type Loader struct {
	// Dirs is script_dirs, already environment-expanded.
	Dirs []string
	// NameTemplates is script_names: filename templates in which
	// "${NAME}" is replaced by the requested script name.
	NameTemplates []string
}

// New builds a Loader from already-expanded directories and templates.
func New(dirs, nameTemplates []string) *Loader {
	return &Loader{Dirs: dirs, NameTemplates: nameTemplates}
}

// Load resolves name to source text: for each directory in order, for
// each filename template in order, the first existing file wins.
// Not-found is a fatal ScriptNotFound error.
func (l *Loader) Load(name string) (source string, path string, err error) {
	for _, dir := range l.Dirs {
		for _, tmpl := range l.NameTemplates {
			filename := strings.ReplaceAll(tmpl, "${NAME}", name)
			candidate := filepath.Join(dir, filename)

			data, readErr := os.ReadFile(candidate)
			if readErr == nil {
				return string(data), candidate, nil
			}
			if !os.IsNotExist(readErr) {
				return "", "", fmt.Errorf("reading %s: %w", candidate, readErr)
			}
		}
	}
	return "", "", fmt.Errorf("script %q: %w", name, scripterr.ErrScriptNotFound)
}
