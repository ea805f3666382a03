package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/persona"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the memory digest, or the whole system prompt with --system",
		Run:   runPrompt,
	}

	cmd.Flags().Bool("system", false, "Print the full system prompt (persona, catalog and digest)")

	memoryCmd.AddCommand(cmd)
}

func runPrompt(cmd *cobra.Command, args []string) {
	system, _ := cmd.Flags().GetBool("system")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	digest := s.FormatForPrompt()
	if !system {
		fmt.Fprintln(cmd.OutOrStdout(), digest)
		return
	}

	p, err := persona.New(cfg.Persona.Path, actions.Default())
	if err != nil {
		exitErr("load persona", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.SystemPrompt(digest))
}
