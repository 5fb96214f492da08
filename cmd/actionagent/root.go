package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/actionagent/core"
)

var rootCmd = &cobra.Command{
	Use:   "actionagent",
	Short: "Action agent turns plain-language instructions into app actions",
	Long: `actionagent resolves an instruction such as "star facebook/react" to a
connector action, extracts its parameters with an LLM, executes it on behalf
of the user and answers with a short summary.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (environment variables override it)")
	rootCmd.PersistentFlags().Bool("dev", false, "Enable development mode")
	rootCmd.PersistentFlags().Bool("mock-ai", false, "Use the scripted mock AI provider")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig layers defaults, the optional file, the environment and flags.
func loadConfig(cmd *cobra.Command, extra ...core.Option) (*core.Config, error) {
	var opts []core.Option
	flags := cmd.Flags()

	if flags.Changed("dev") {
		dev, _ := flags.GetBool("dev")
		opts = append(opts, core.WithDevelopmentMode(dev))
	}
	if flags.Changed("mock-ai") {
		mockAI, _ := flags.GetBool("mock-ai")
		opts = append(opts, core.WithMockAI(mockAI))
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		opts = append(opts, core.WithLogLevel(level))
	}
	opts = append(opts, extra...)

	if path, _ := flags.GetString("config"); path != "" {
		return core.NewConfigFromFile(path, opts...)
	}
	return core.NewConfig(opts...)
}
