package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observations, grouped by entity in prompt order",
		Run:   runList,
	}

	cmd.Flags().StringP("entity", "e", "", "Filter by entity")
	cmd.Flags().IntP("limit", "l", 0, "Keep only the newest N per entity (0 = all)")

	memoryCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	entity, _ := cmd.Flags().GetString("entity")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var filter model.Entity
	if entity != "" {
		filter = protocol.NormalizeEntity(entity)
	}

	var records []store.ExportRecord
	doc := s.Snapshot()
	for _, e := range doc.OrderedEntities() {
		if filter != "" && e != filter {
			continue
		}
		el := doc.Entities[e]
		if el == nil {
			continue
		}
		obs := el.Observations
		if limit > 0 && len(obs) > limit {
			obs = obs[len(obs)-limit:]
		}
		for _, o := range obs {
			records = append(records, store.ExportRecord{Entity: e, Observation: o})
		}
	}

	if formatFlag == "text" {
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Entity, r.Timestamp.Format("2006-01-02 15:04"), r.Content)
		}
		return
	}
	if records == nil {
		records = []store.ExportRecord{}
	}
	printJSON(cmd, records)
}
