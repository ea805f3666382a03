package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/store"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit what the robot remembers",
}

func init() {
	cmd := &cobra.Command{
		Use:   "add [observation]",
		Short: "Remember an observation",
		Long: "Remember an observation. Content can be a positional arg or piped via stdin. " +
			"Without --entity the entity is detected the same way as for untagged MEMORY lines.",
		Run: runAdd,
	}

	cmd.Flags().StringP("entity", "e", "", "Entity tag, e.g. Leon, self, environment")

	memoryCmd.AddCommand(cmd)
	RootCmd.AddCommand(memoryCmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	tag, _ := cmd.Flags().GetString("entity")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		exitErr("add", fmt.Errorf("observation is required (positional arg or stdin)"))
	}

	note := protocol.DetectEntity(content)
	if tag != "" {
		note = model.MemoryNote{Entity: protocol.NormalizeEntity(tag), Observation: content}
	}

	s, err := openStore(cmd.Context())
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.AddObservation(cmd.Context(), note.Entity, note.Observation); err != nil {
		exitErr("add", err)
	}

	obs := s.Observations(note.Entity)
	if len(obs) == 0 {
		exitErr("add", fmt.Errorf("nothing to remember in %q", content))
	}
	printJSON(cmd, store.ExportRecord{Entity: note.Entity, Observation: obs[len(obs)-1]})
}
