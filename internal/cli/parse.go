package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/robot"
)

// parseResult is a parsed reply plus what the dispatcher would do with its
// actions in a given mode.
type parseResult struct {
	model.ParsedResponse
	Mode  mode.Mode  `json:"mode"`
	Plan  []planStep `json:"plan"`
	Lines []lineKind `json:"lines"`
}

type planStep struct {
	Action  string `json:"action"`
	Verdict string `json:"verdict"` // execute | drop | unknown
}

type lineKind struct {
	Line string `json:"line"`
	Kind string `json:"kind"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "parse [reply]",
		Short: "Parse a language-model reply",
		Long: "Parse a reply in the ACTIONS/speech/MEMORY format and show how each action " +
			"would be dispatched in the given mode. The reply is read from stdin when no argument is given.",
		Run: runParse,
	}

	cmd.Flags().String("mode", string(mode.Listening), "Mode used to gate actions")

	RootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) {
	m, _ := cmd.Flags().GetString("mode")

	raw := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			exitErr("read stdin", err)
		}
		raw = string(b)
	}

	current := mode.Mode(m)
	if !knownMode(current) {
		exitErr("parse", fmt.Errorf("unknown mode %q", m))
	}

	parsed := protocol.Parse(raw)
	out := parseResult{ParsedResponse: parsed, Mode: current, Plan: []planStep{}}
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out.Lines = append(out.Lines, lineKind{Line: line, Kind: protocol.Classify(line).String()})
	}

	reg := actions.Default()
	for _, name := range parsed.Actions {
		step := planStep{Action: name, Verdict: "drop"}
		a, ok := reg.Lookup(name)
		switch {
		case !ok:
			step.Verdict = "unknown"
		case robot.Allowed(a, current):
			step.Verdict = "execute"
		}
		out.Plan = append(out.Plan, step)
	}

	printJSON(cmd, out)
}

func knownMode(m mode.Mode) bool {
	for _, k := range mode.All {
		if k == m {
			return true
		}
	}
	return false
}
