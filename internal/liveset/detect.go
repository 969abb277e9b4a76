package liveset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Installation describes one Ableton Live install found on this machine.
type Installation struct {
	Name string
	Path string
}

// DetectInstallations looks for Ableton Live installs in the conventional
// application directories. Results are sorted by name; an empty slice means
// no install was found, which is common on machines that only host project
// archives.
func DetectInstallations() []Installation {
	var roots []string
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, "Applications"))
	}
	roots = append(roots, "/Applications", "/opt")
	if programData := os.Getenv("PROGRAMDATA"); programData != "" {
		roots = append(roots, filepath.Join(programData, "Ableton"))
	}

	seen := make(map[string]struct{})
	var installs []Installation
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, "Ableton Live") {
				continue
			}
			display := strings.TrimSuffix(name, ".app")
			if _, ok := seen[display]; ok {
				continue
			}
			seen[display] = struct{}{}
			installs = append(installs, Installation{
				Name: display,
				Path: filepath.Join(root, name),
			})
		}
	}
	sort.Slice(installs, func(i, j int) bool { return installs[i].Name < installs[j].Name })
	return installs
}
