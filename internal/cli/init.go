package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/imkarma/crewdeck/internal/config"
	"github.com/imkarma/crewdeck/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize crewdeck in the current directory",
	Long:  "Creates a .crewdeck/ directory with default config and database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(crewdeckDirName); err == nil {
		return fmt.Errorf("crewdeck already initialized in this directory (.crewdeck/ exists)")
	}

	if err := os.MkdirAll(crewdeckDirName, 0755); err != nil {
		return fmt.Errorf("create .crewdeck: %w", err)
	}

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generate jwt secret: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = secret
	if err := config.Save(crewdeckPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create database by opening store (migration runs automatically).
	s, err := store.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Println("Initialized crewdeck in .crewdeck/")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Println("  1. Review .crewdeck/config.yaml")
	fmt.Println("  2. Run: crewdeck serve")
	fmt.Println("  3. Register a member: POST /api/v1/auth/register")

	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
