package cmd

import (
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format on the read commands.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// outputJSON sorts map keys so that severity and status buckets print in a
// stable order.
var outputJSON = json.ConfigCompatibleWithStandardLibrary

func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", formatJSON, "output format (json, yaml)")
}

// render writes v to w in the requested format. YAML output is derived from
// the JSON encoding so both formats share field names and member order.
func render(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON, "":
		enc := outputJSON.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return nil
	case formatYAML:
		data, err := outputJSON.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to convert output to yaml: %w", err)
		}
		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// blockStyle clears the flow and quoting styles inherited from JSON. The
// encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func checkOutputFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}
