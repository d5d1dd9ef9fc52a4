package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layout places every dataset of a run under Root/<run date>.
type Layout struct {
	Root string
	Date time.Time
}

func NewLayout(root string, date time.Time) Layout {
	return Layout{Root: root, Date: date}
}

// Dir is the dated directory for the run.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, l.Date.Format(dateLayout))
}

// Ensure creates the dated directory.
func (l Layout) Ensure() error {
	return os.MkdirAll(l.Dir(), 0755)
}

// Path returns the file for a search term with the given extension.
func (l Layout) Path(term, ext string) string {
	return filepath.Join(l.Dir(), BaseName(term)+ext)
}

// BaseName turns a search term into a file stem: "cafes in Rome" becomes
// "cafes_in_Rome".
func BaseName(term string) string {
	term = strings.TrimSpace(term)
	r := strings.NewReplacer(" ", "_", "/", "_", `\`, "_", ":", "_")
	name := r.Replace(term)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
