package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/connector"
	"github.com/itsneelabh/actionagent/core"
)

type pinger interface {
	Ping(ctx context.Context) error
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check API keys against the connector and AI services",
	Long: `Loads the configuration, then calls the connector service and the AI
endpoint once each to confirm the configured keys are accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		return verify(ctx, cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Duration("timeout", 15*time.Second, "Deadline for all checks")
}

func verify(ctx context.Context, out io.Writer, cfg *core.Config) error {
	failed := 0
	report := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(out, "  %-10s FAIL  %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "  %-10s ok\n", name)
	}

	fmt.Fprintln(out, "Checking services:")

	conn, err := connector.NewClient(connector.ConfigFromCore(cfg.Connector, nil, nil, nil))
	if err == nil {
		err = conn.Ping(ctx)
	}
	report("connector", err)

	aiClient, err := ai.NewClient(ai.ConfigFromCore(cfg.AI, cfg.Development, nil, nil))
	if err == nil {
		if p, ok := aiClient.(pinger); ok {
			err = p.Ping(ctx)
		}
	}
	report("ai", err)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed: %w", failed, core.ErrInvalidConfiguration)
	}
	return nil
}
