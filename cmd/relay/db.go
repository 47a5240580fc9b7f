package main

import (
	"fmt"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/oz-collabo-04/Back/infrastructure/storage"
	"github.com/spf13/cobra"
)

type dbConfig struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
}

// dbCmd prints stored keys. It opens the database read-only, so it can run
// next to a live relay.
func dbCmd() *cobra.Command {
	var (
		prefix string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the Badger store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			var config dbConfig
			if _, err := env.UnmarshalFromEnviron(&config); err != nil {
				return configError{fmt.Errorf("config error: %w", err)}
			}

			opts := badger.DefaultOptions(config.BadgerFilepath).
				WithReadOnly(true).
				WithBypassLockGuard(true).
				WithLoggingLevel(badger.WARNING)
			db, err := badger.Open(opts)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			rows, err := storage.Inspect(db, prefix, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.New(color.FgGreen, color.OpBold).Sprintf("%d keys under %q", len(rows), prefix))

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Key", "Kind", "Owner", "Timestamp", "Entity ID", "Detail"})
			table.SetAutoWrapText(false)
			table.SetAutoFormatHeaders(true)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetTablePadding("\t")
			for _, row := range rows {
				table.Append([]string{row.Key, row.Kind, row.Owner, row.Timestamp, row.EntityID, row.Detail})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix to scan (msg:, notif:, room:)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of keys, 0 for all")
	return cmd
}
