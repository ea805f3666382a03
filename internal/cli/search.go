package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search observations by keyword",
		Long:  "Search observation content for matching text, newest first.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("entity", "e", "", "Filter by entity")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	memoryCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	entity, _ := cmd.Flags().GetString("entity")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p := store.SearchParams{Query: query, Limit: limit}
	if entity != "" {
		p.Entity = protocol.NormalizeEntity(entity)
	}
	results := s.Search(p)

	if formatFlag == "text" {
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Entity, r.Content)
		}
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	printJSON(cmd, results)
}
