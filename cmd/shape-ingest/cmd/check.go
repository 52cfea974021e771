package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shapestone/shape-ingest/internal/config"
	"github.com/shapestone/shape-ingest/pkg/ingest"
)

var checkQuiet bool

var checkCmd = &cobra.Command{
	Use:   "check <file|->",
	Short: "Validate a captured request stream",
	Long: `Parse a file holding raw HTTP/1.1 requests exactly as a connection would,
using the configured limits. Every accepted request is listed; the command
fails on the first protocol violation or a truncated final request.

Examples:
  shape-ingest check capture.http
  printf 'GET / HTTP/1.1\r\n\r\n' | shape-ingest check -`,
	Args:         cobra.ExactArgs(1),
	RunE:         runCheck,
	SilenceUsage: true,
}

func init() {
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "print nothing on success")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	in, err := openInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	reqs, err := ingest.ReadAll(cmd.Context(), in, cfg.Limits.ParserConfig())
	out := cmd.OutOrStdout()
	if !checkQuiet {
		for i := range reqs {
			m := &reqs[i].Meta
			fmt.Fprintf(out, "%d\t%s %s %s\tbody=%d\n", i+1, m.Method, m.Target, m.Version, len(reqs[i].Body))
		}
	}
	if err != nil {
		return fmt.Errorf("request %d rejected: %w", len(reqs)+1, err)
	}
	if !checkQuiet {
		fmt.Fprintf(out, "ok: %d request(s)\n", len(reqs))
	}
	return nil
}
