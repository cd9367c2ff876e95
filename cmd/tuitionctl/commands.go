package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tuitiondesk/internal/application"
	"github.com/JonMunkholm/tuitiondesk/internal/config"
	mw "github.com/JonMunkholm/tuitiondesk/internal/web/middleware"
)

// opener builds the application for one command run.
type opener func(ctx context.Context) (*application.App, error)

func newRootCmd(cfg *config.Config, open opener) *cobra.Command {
	var output string

	root := &cobra.Command{
		Use:           "tuitionctl",
		Short:         "Backup and maintenance for tuitiondesk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&output, "output", "o", "yaml", "result format: yaml or json")

	printer := func(cmd *cobra.Command, v any) error { return printResult(cmd.OutOrStdout(), output, v) }

	root.AddCommand(
		newExportCmd(open),
		newImportCmd(open, printer),
		newBackfillCmd(open, printer),
		newTokenCmd(cfg),
	)
	return root
}

// withApp opens the application for the duration of fn.
func withApp(ctx context.Context, open opener, fn func(*application.App) error) error {
	app, err := open(ctx)
	if err != nil {
		return err
	}
	runErr := fn(app)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newExportCmd(open opener) *cobra.Command {
	var tenant, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a tuition's backup archive",
		Long: `Export one tuition as a backup ZIP archive.

--out may be a directory (the archive keeps its default name), a file
path, or "-" for stdout.

Examples:
  tuitionctl export --tenant TUI-1
  tuitionctl export --tenant TUI-1 --out backups/
  tuitionctl export --tenant TUI-1 --out - > tui-1.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, func(app *application.App) error {
				bundle, err := app.Service.Export(cmd.Context(), tenant)
				if err != nil {
					return err
				}
				if out == "-" {
					_, err := cmd.OutOrStdout().Write(bundle.Data)
					return err
				}

				path := out
				if info, err := os.Stat(out); (err == nil && info.IsDir()) || strings.HasSuffix(out, string(os.PathSeparator)) {
					if err := os.MkdirAll(out, 0o755); err != nil {
						return err
					}
					path = filepath.Join(out, bundle.FileName)
				}
				if err := os.WriteFile(path, bundle.Data, 0o644); err != nil {
					return fmt.Errorf("write archive: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes, %d entries)\n", path, len(bundle.Data), len(bundle.Manifest.Entries))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tuition custom or internal ID (required)")
	cmd.Flags().StringVar(&out, "out", ".", "output directory, file, or - for stdout")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newImportCmd(open opener, report func(*cobra.Command, any) error) *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Restore a backup archive",
		Long: `Restore a backup archive into the configured store.

Records already present (matched by custom ID) are reused, so importing
the same archive twice creates nothing the second time. The tuition
owner's account must exist, matched by phone number.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(cmd.Context(), open, func(app *application.App) error {
				summary, err := app.Service.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				return report(cmd, summary)
			})
		},
	}
}

func newBackfillCmd(open opener, report func(*cobra.Command, any) error) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-ids",
		Short: "Assign custom IDs to tuitions, batches and students lacking one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), open, func(app *application.App) error {
				res, err := app.Service.BackfillCustomIDs(cmd.Context())
				if err != nil {
					return err
				}
				return report(cmd, res)
			})
		},
	}
}

// newTokenCmd signs a bearer token with JWT_SECRET, for scripts and
// first-time admin access.
func newTokenCmd(cfg *config.Config) *cobra.Command {
	var user, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed API bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Security.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := mw.SignToken([]byte(cfg.Security.JWTSecret), user, role, time.Now().Add(ttl))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID placed in the token subject (required)")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printResult(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		// Round-trip through JSON so field names match the HTTP API.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
	return fmt.Errorf("unknown output format %q", format)
}
