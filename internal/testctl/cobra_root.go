package testctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmd is a convenience for help-only fallbacks.
func buildRootCmd() *cobra.Command { return buildRootCmdWith(&Config{LogLvl: "info"}) }

// buildRootCmdWith constructs a Cobra command tree wired to the fn* actions.
func buildRootCmdWith(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "testctl",
		Short:         "Test and dev utilities for nnevald",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults TESTCTL_LOG_LEVEL or info)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if f := cmd.InheritedFlags().Lookup("log-level"); f != nil {
			if v := f.Value.String(); v != "" {
				cfg.LogLvl = v
			}
		}
		SetLogLevel(cfg.LogLvl)
	}

	// test group
	testCmd := &cobra.Command{Use: "test", Short: "Run tests", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("test requires a subcommand: unit|e2e|live|all")
	}}
	testUnit := &cobra.Command{Use: "unit", Short: "Run Go unit tests", RunE: func(cmd *cobra.Command, args []string) error { return fnRunGoTests() }}
	testE2E := &cobra.Command{Use: "e2e", Short: "Run in-process E2E tests", RunE: func(cmd *cobra.Command, args []string) error { return fnRunE2E() }}
	testLive := &cobra.Command{Use: "live", Short: "Build and smoke-test the daemon over HTTP", RunE: func(cmd *cobra.Command, args []string) error { return fnRunLive(cfg) }}
	testAll := &cobra.Command{Use: "all", Short: "Unit, then E2E, then live smoke", RunE: func(cmd *cobra.Command, args []string) error {
		if err := fnRunGoTests(); err != nil {
			return err
		}
		if err := fnRunE2E(); err != nil {
			return err
		}
		return fnRunLive(cfg)
	}}
	testCmd.AddCommand(testUnit, testE2E, testLive, testAll)
	root.AddCommand(testCmd)

	// gen group
	genCmd := &cobra.Command{Use: "gen", Short: "Generate test fixtures", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("gen requires a subcommand: network")
	}}
	genNet := &cobra.Command{
		Use:     "network <path>",
		Short:   "Write a deterministic random weight file",
		Example: "  testctl gen network ~/networks/test-64x6.nnwb --shape 64x6 --se --wdl --mlh",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shape, _ := cmd.Flags().GetString("shape")
			seed, _ := cmd.Flags().GetInt64("seed")
			se, _ := cmd.Flags().GetBool("se")
			wdl, _ := cmd.Flags().GetBool("wdl")
			mlh, _ := cmd.Flags().GetBool("mlh")
			return fnGenNetwork(args[0], shape, seed, se, wdl, mlh)
		},
	}
	genNet.Flags().String("shape", "64x6", "Tower shape as <filters>x<blocks>")
	genNet.Flags().Int64("seed", 1, "Deterministic seed")
	genNet.Flags().Bool("se", true, "Include squeeze-excite weights")
	genNet.Flags().Bool("wdl", true, "Win/draw/loss value head")
	genNet.Flags().Bool("mlh", true, "Include a moves-left head")
	genCmd.AddCommand(genNet)
	root.AddCommand(genCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}
