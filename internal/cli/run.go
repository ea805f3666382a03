package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/brain"
	"github.com/rcliao/robot-brain/internal/conversation"
	"github.com/rcliao/robot-brain/internal/embedding"
	"github.com/rcliao/robot-brain/internal/explore"
	"github.com/rcliao/robot-brain/internal/joystick"
	"github.com/rcliao/robot-brain/internal/metrics"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/openai"
	"github.com/rcliao/robot-brain/internal/persona"
	"github.com/rcliao/robot-brain/internal/robot"
	"github.com/rcliao/robot-brain/internal/robot/sim"
)

// DefaultPlayer plays the 24 kHz 16-bit mono PCM returned by the speech API.
const DefaultPlayer = "aplay -q -f S16_LE -r 24000 -c 1"

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the robot brain against the simulated car",
		Long: "Run the supervisor loop. Type at the prompt to talk to the robot: every line " +
			"is heard as the wake word followed by what you said. A phone controller can drive " +
			"the car over the joystick websocket.",
		Run: runRun,
	}

	cmd.Flags().Bool("offline", false, "Use the built-in parrot instead of the OpenAI API")
	cmd.Flags().Bool("tts", false, "Speak replies with OpenAI text-to-speech")
	cmd.Flags().String("player", DefaultPlayer, "Command that plays synthesized audio from stdin")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	cmd.Flags().String("joystick-addr", "", "Joystick websocket address (overrides joystick.addr)")
	cmd.Flags().Int("battery", 100, "Starting battery of the simulated car")
	cmd.Flags().Float64("drain", 0.5, "Battery drain of the simulated car in percent per minute")

	RootCmd.AddCommand(cmd)
}

func runRun(cmd *cobra.Command, args []string) {
	offline, _ := cmd.Flags().GetBool("offline")
	tts, _ := cmd.Flags().GetBool("tts")
	player, _ := cmd.Flags().GetString("player")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	joystickAddr, _ := cmd.Flags().GetString("joystick-addr")
	battery, _ := cmd.Flags().GetInt("battery")
	drain, _ := cmd.Flags().GetFloat64("drain")

	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if joystickAddr != "" {
		cfg.Joystick.Addr = joystickAddr
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem, err := openStore(ctx)
	if err != nil {
		exitErr("open store", err)
	}
	defer mem.Close()

	reg := actions.Default()
	p, err := persona.New(cfg.Persona.Path, reg)
	if err != nil {
		exitErr("load persona", err)
	}
	if cfg.Persona.Watch {
		if err := p.Watch(ctx); err != nil {
			log.Warn().Err(err).Str("component", "persona").Msg("persona watch disabled")
		}
	}

	car := sim.New(sim.WithBattery(float64(battery), drain))
	console := sim.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	go func() {
		select {
		case <-console.Done():
			log.Info().Str("component", "cli").Msg("input closed, shutting down")
			stop()
		case <-ctx.Done():
		}
	}()

	var sensors robot.Sensors = car
	if cfg.Joystick.Enabled {
		js := joystick.NewServer(cfg.Joystick.Stale)
		sensors = joystick.WithSensors(car, js)
		go func() {
			if err := js.ListenAndServe(ctx, cfg.Joystick.Addr); err != nil {
				log.Error().Err(err).Str("component", "joystick").Msg("joystick server failed")
			}
		}()
	}
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr)
	}

	var (
		llm       robot.LLM            = sim.Parrot{}
		speaker   robot.Speaker        = console
		describer robot.SceneDescriber = sim.NewScenes()
		client    *openai.Client
	)
	if !offline {
		client, err = openai.New(cfg.LLM, sim.ExecSink{Command: strings.Fields(player)})
		if err != nil {
			exitErr("openai", err)
		}
		llm = client
		if tts {
			speaker = client
		}
	}

	emb, err := sceneEmbedder(cfg.Embedding, client)
	if err != nil {
		exitErr("embedding", err)
	}

	machine := mode.New(cfg.Modes)
	dispatcher := robot.NewDispatcher(reg, machine, robot.NewBody(car), robot.WithPause(cfg.Conversation.ActionPause))
	pipeline := conversation.NewPipeline(llm, p, mem, dispatcher, speaker,
		conversation.WithWakeWord(console),
		conversation.WithRetry(cfg.Retry),
		conversation.WithHistory(conversation.NewHistory(cfg.Conversation.HistoryPairs)),
	)
	loop := conversation.NewLoop(pipeline, sim.Echo{}, machine)

	var sup *brain.Supervisor
	explorer := explore.New(cfg.Explore, car, sensors, machine,
		explore.WithWakeWord(console),
		explore.WithVision(&sim.Camera{}, describer, explore.NewNovelty(emb, cfg.Explore.NoveltyHistory)),
		explore.WithNarrator(pipeline),
		explore.WithCycleHook(func(ctx context.Context) { sup.SampleBattery(ctx) }),
	)
	sup = brain.New(cfg.Brain, machine, loop, sensors, console, explorer, brain.WithManualDrive(car))

	log.Info().Str("component", "cli").
		Bool("offline", offline).
		Str("memory", getMemoryPath()).
		Msg("robot brain starting, type to talk")

	if err := sup.Run(ctx); err != nil {
		exitErr("run", err)
	}
}

// sceneEmbedder builds the novelty embedder. client is nil when offline.
func sceneEmbedder(ec embedding.Config, client *openai.Client) (embedding.Embedder, error) {
	var api *goopenai.Client
	if client != nil {
		api = client.API()
	}
	return embedding.New(ec, api)
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("component", "metrics").Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("component", "metrics").Msg("metrics server failed")
	}
}
