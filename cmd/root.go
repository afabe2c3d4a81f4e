package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Face enrollment and recognition attendance engine",
	Long: `Facegate enrolls people from face embedding samples, matches probe
embeddings against the enrolled gallery, and records every accept/reject
decision in an append-only attendance ledger.

Face detection and embedding extraction happen in an external service;
facegate only ever sees vectors.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initEnv)
}

func initEnv() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig resolves the configuration and a logger for command runners.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return cfg, log, nil
}
