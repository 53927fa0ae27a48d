// Package main provides the CLI entry point for sheetsplit.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/OmniMCP-AI/sheetsplit"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// splitConfig is the merged CLI configuration: defaults, then an optional
// sheetsplit.yaml, then SHEETSPLIT_* env vars, then flags.
type splitConfig struct {
	Groups        string `koanf:"groups"`
	Out           string `koanf:"out"`
	Workers       int    `koanf:"workers"`
	BreakDangling bool   `koanf:"break_dangling"`
	Verbose       bool   `koanf:"verbose"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sheetsplit",
		Short: "Split a workbook into filtered derivatives with formulas remapped",
		Long: `sheetsplit filters workbook rows by column values and writes one
derivative workbook per condition group. Every formula in the workbook is
remapped so its row references keep pointing at the right cells after the
filtered rows are removed, including references across worksheets.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newSplitCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newSplitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <input.xlsx>",
		Short: "Apply condition groups to a workbook and write the derivatives",
		Args:  cobra.ExactArgs(1),
		RunE:  runSplit,
	}
	cmd.Flags().StringP("groups", "g", "", "Condition groups file (JSON or YAML)")
	cmd.Flags().StringP("out", "o", ".", "Output directory for derivative workbooks")
	cmd.Flags().Int("workers", 0, "Formula rewrite workers (default: number of CPUs)")
	cmd.Flags().Bool("break-dangling", false, "Rewrite references to removed rows as #REF! instead of preserving them")
	cmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.Flags().String("config", "", "Config file (default: sheetsplit.yaml if present)")
	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Groups == "" {
		return fmt.Errorf("a condition groups file is required (--groups)")
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	groups, err := sheetsplit.LoadConditionGroups(cfg.Groups)
	if err != nil {
		return fmt.Errorf("load condition groups: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("no condition groups in %s", cfg.Groups)
	}

	policy := sheetsplit.PreserveDanglingRefs
	if cfg.BreakDangling {
		policy = sheetsplit.BreakDanglingRefs
	}

	written, err := sheetsplit.SplitFile(args[0], groups, cfg.Out, sheetsplit.SplitOptions{
		Policy:  policy,
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d workbook(s)\n", len(written))
	for _, p := range written {
		fmt.Fprintln(cmd.OutOrStdout(), "  "+p)
	}
	return nil
}

// loadConfig merges configuration sources lowest to highest priority:
// built-in defaults, config file, environment, explicitly set flags.
func loadConfig(flags *pflag.FlagSet) (*splitConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"out":     ".",
		"workers": 0,
	}, "."), nil); err != nil {
		return nil, err
	}

	explicit, _ := flags.GetString("config")
	if path := findConfigFile(explicit); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("SHEETSPLIT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SHEETSPLIT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		if !f.Changed {
			return "", nil
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		return key, posflag.FlagVal(flags, f)
	}), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg splitConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"sheetsplit.yaml", "sheetsplit.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
