package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/persona"
)

func init() {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the actions the robot can perform",
		Run:   runActions,
	}

	RootCmd.AddCommand(cmd)
}

func runActions(cmd *cobra.Command, args []string) {
	reg := actions.Default()
	if formatFlag == "text" {
		fmt.Fprintln(cmd.OutOrStdout(), persona.Catalog(reg))
		return
	}
	printJSON(cmd, reg.All())
}
