package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/imkarma/crewdeck/internal/config"
	"github.com/imkarma/crewdeck/internal/store"
)

const crewdeckDirName = ".crewdeck"

// crewdeckPath returns the path to a file inside .crewdeck/.
func crewdeckPath(parts ...string) string {
	elems := append([]string{crewdeckDirName}, parts...)
	return filepath.Join(elems...)
}

// mustConfig loads the workspace config, returning an error if crewdeck
// is not initialized here.
func mustConfig() (*config.Config, error) {
	cfgPath := crewdeckPath("config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("crewdeck not initialized. Run: crewdeck init")
	}
	return config.Load(cfgPath)
}

// mustStore opens the store named by the workspace config.
func mustStore() (*store.Store, error) {
	cfg, err := mustConfig()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.Server.DBPath)
}

// truncate shortens s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// priorityColor returns the ANSI color for a task priority.
func priorityColor(priority string) string {
	switch priority {
	case "urgent":
		return colorBgRed
	case "high":
		return colorRed
	case "medium":
		return colorYellow
	default:
		return colorDim
	}
}
