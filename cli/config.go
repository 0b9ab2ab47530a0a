package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/compozy/executor/pkg/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection",
	}
	cmd.AddCommand(configShowCmd(), configEnvCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeConfig(cmd.OutOrStdout(), config.FromContext(cmd.Context()), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (json, yaml)")
	return cmd
}

func configEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables the configuration reads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeEnvMappings(cmd.OutOrStdout())
		},
	}
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	data, err := configMap(cfg)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// configMap flattens cfg into koanf-keyed nested maps and redacts sensitive
// fields.
func configMap(cfg *config.Config) (map[string]any, error) {
	out := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "koanf",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	redact(out, "")
	return out, nil
}

func redact(m map[string]any, prefix string) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			redact(nested, path)
			continue
		}
		if config.IsSensitive(path) && fmt.Sprint(v) != "" {
			m[k] = redacted
			continue
		}
		if d, ok := v.(fmt.Stringer); ok {
			m[k] = d.String()
		}
	}
}

func writeEnvMappings(w io.Writer) error {
	mappings := append([]config.EnvMapping(nil), config.GenerateEnvMappings()...)
	sort.Slice(mappings, func(i, j int) bool {
		if mappings[i].ConfigPath != mappings[j].ConfigPath {
			return mappings[i].ConfigPath < mappings[j].ConfigPath
		}
		return !mappings[i].Alias && mappings[j].Alias
	})
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tPATH\tKIND")
	for _, m := range mappings {
		kind := "canonical"
		if m.Alias {
			kind = "alias"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.EnvVar, m.ConfigPath, kind)
	}
	return tw.Flush()
}
