package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage enrolled users",
}

func init() {
	rootCmd.AddCommand(userCmd)
}

// openStores opens the relational store and the template store from config.
func openStores(cfg *config.Config, log *logrus.Logger) (*store.Store, *gallery.TemplateStore, error) {
	db, err := store.Open(cfg.Storage.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	templates, err := gallery.NewTemplateStore(cfg.Storage.EmbeddingsDir, cfg.Extractor.Dim, log)
	if err != nil {
		return nil, nil, err
	}
	return db, templates, nil
}
