package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/imkarma/crewdeck/internal/server"
	"github.com/imkarma/crewdeck/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the crewdeck API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(level)
	}

	s, err := store.New(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(cfg, s, log.WithField("app", "crewdeck"))
	return srv.Run()
}
