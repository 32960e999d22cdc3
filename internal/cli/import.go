package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
	transport "qbank-import-service/internal/transport/http"
)

// NewImportCmd imports a JSON file straight into the configured store.
func NewImportCmd(configPath *string) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import questions from a JSON file (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			config.InitLogger(cfg.Log.Level, cfg.Log.Format)
			if secret == "" {
				secret = cfg.Import.Secret
			}

			records, err := readRecords(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.importer.Import(cmd.Context(), secret, records)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("IMPORT_SECRET"), "import credential (defaults to import.secret)")
	return cmd
}

func readRecords(stdin io.Reader, path string) ([]domain.RawRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	records, err := transport.ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
