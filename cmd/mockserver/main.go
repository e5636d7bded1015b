package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatlink/internal/logger"
	"chatlink/internal/mockserver"
)

func main() {
	var (
		addr     string
		dbPath   string
		authBase string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "mockserver",
		Short:         "Stand-in chat backend for local development",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: logLevel, Format: "console"})
			srv, err := mockserver.New(dbPath, authBase, log)
			if err != nil {
				return err
			}
			return srv.Run(addr)
		},
	}
	root.Flags().StringVar(&addr, "addr", ":9876", "listen address")
	root.Flags().StringVar(&dbPath, "db", "mockserver.db", "sqlite database file")
	root.Flags().StringVar(&authBase, "auth-base", "/users", "path prefix of the auth endpoints")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
