package session

import (
	"os"

	"github.com/JuanCF/scrcpy-mcp/internal/errkind"
)

// locateServerJar returns the first existing, readable path in the search
// order config.Config.ServerJarSearchPath supplies. Mirrors spec.md §4.D
// step 1: the jar must be resolved before anything device-side happens.
func locateServerJar(searchPaths []string) (string, error) {
	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errkind.New(errkind.ServerNotFound, "scrcpy-server.jar not found in any of %v", searchPaths)
}
