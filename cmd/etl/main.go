// Command etl streams records from one or more extractors through optional
// transforms into a loader.
//
//	etl run -e people.csv -t json -l people.json
//	etl run -e https://example.com/a.xlsx -e b.csv --extract-concat -t csv
//	etl run --config pipeline.yaml
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/ajitpratap0/streametl/pkg/connector/destinations"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	_ "github.com/ajitpratap0/streametl/pkg/connector/sources"
	_ "github.com/ajitpratap0/streametl/pkg/connector/transforms"
	"github.com/ajitpratap0/streametl/pkg/json"
	"github.com/ajitpratap0/streametl/pkg/version"
)

// Exit codes.
const (
	ExitSetup    = 10
	ExitInvalid  = 20
	ExitFailed   = 30
	exitFallback = ExitSetup
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by the root command to a process exit
// code. Usage errors reported by cobra count as setup failures.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	return exitFallback
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "etl:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "etl",
		Short: "Stream records from extractors through transforms into a loader",
		Long: `etl reads delimited text, spreadsheets, JSON, URLs and database queries,
optionally re-encodes the records, and writes them to files, object storage,
brokers or databases. Memory stays bounded: every stage is flow-controlled.

Settings not given as flags are read from ETL_ environment variables and an
optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd(), newListCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "etl v%s\n", version.Version)
			fmt.Fprintf(out, "Commit: %s\n", version.Commit)
			fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered extractors, transforms and loaders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := registry.List()
			if asJSON {
				data, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tKEY\tDESCRIPTION")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Kind, info.Name, info.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	return cmd
}
