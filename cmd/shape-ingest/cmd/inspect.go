package cmd

import (
	"fmt"
	"io"

	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|->",
	Short: "Print the requests in a captured stream",
	Long: `Parse a file holding raw HTTP/1.1 requests and print them.

Formats:
  yaml   one YAML document per request (default)
  wire   re-encoded requests in canonical wire form`,
	Args:         cobra.ExactArgs(1),
	RunE:         runInspect,
	SilenceUsage: true,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "yaml", "output format: yaml or wire")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectFormat != "yaml" && inspectFormat != "wire" {
		return fmt.Errorf("unknown format %q", inspectFormat)
	}

	in, err := openInput(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer in.Close()

	nodes, err := ingest.ParseReader(in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectFormat == "wire" {
		for _, n := range nodes {
			b, err := ingest.Render(n)
			if err != nil {
				return err
			}
			if _, err := out.Write(b); err != nil {
				return err
			}
		}
		return nil
	}
	return writeYAML(out, nodes)
}

func writeYAML(w io.Writer, nodes []ast.SchemaNode) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, n := range nodes {
		if err := enc.Encode(ingest.NodeToInterface(n)); err != nil {
			return err
		}
	}
	return enc.Close()
}
