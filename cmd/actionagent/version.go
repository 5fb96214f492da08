package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/actionagent"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of actionagent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "actionagent version %s (api %s, commit %s, built %s)\n",
			actionagent.Version, actionagent.APIVersion, actionagent.GitCommit, actionagent.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
