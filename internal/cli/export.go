package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export observations as JSON",
		Long:  "Export observations as a JSON array of {entity, id, content, timestamp}. Filter by entity with -e.",
		Run:   runExport,
	}

	cmd.Flags().StringP("entity", "e", "", "Filter by entity")

	memoryCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	entity, _ := cmd.Flags().GetString("entity")

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var filter model.Entity
	if entity != "" {
		filter = protocol.NormalizeEntity(entity)
	}
	records := s.ExportAll(filter)
	if records == nil {
		records = []store.ExportRecord{}
	}
	printJSON(cmd, records)
}
