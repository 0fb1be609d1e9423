// Command lunabot is the process entrypoint: it selects an application
// mode from the first CLI argument, initializes the process-wide
// resources (logger, metrics provider, tracer), loads the mandatory
// kinematic-chain layout, and runs the mode's loop until an interrupt
// signal or an unrecoverable error forces a shutdown. Grounded on
// ariadne's cli/cmd/ariadne/main.go flag-parsing and lifecycle shape,
// generalized from the crawler's seed/checkpoint/metrics flags to
// lunabot's mode/config/layout flags (§6, §9).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"lunabot/internal/behavior"
	"lunabot/internal/config"
	"lunabot/internal/kinematics"
	"lunabot/internal/localization"
	"lunabot/internal/occupancy"
	"lunabot/internal/planner"
	"lunabot/internal/pubsub"
	"lunabot/internal/spatial"
	"lunabot/internal/telemetry/logging"
	"lunabot/internal/telemetry/metrics"
	"lunabot/internal/telemetry/tracing"
	"lunabot/internal/telemetry/webrtcsink"
	"lunabot/internal/transport"
	"lunabot/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: lunabot <mode> [flags]\nmodes: help %v\n", config.ModeDirectory)
		os.Exit(1)
	}
	modeArg := os.Args[1]
	mode, err := config.ParseMode(modeArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if mode == config.HelpMode {
		fmt.Println("lunabot modes:")
		for _, m := range config.ModeDirectory {
			fmt.Println("  " + m)
		}
		return
	}

	var (
		configPath  string
		layoutPath  string
		dumpRoot    string
		metricsAddr string
	)
	fs := flag.NewFlagSet(modeArg, flag.ExitOnError)
	fs.StringVar(&configPath, "config", "lunabot.toml", "path to the TOML configuration file")
	fs.StringVar(&layoutPath, "layout", "", "path to the JSON kinematic-chain layout (mandatory)")
	fs.StringVar(&dumpRoot, "dump-root", "", "root directory for dated dump directories")
	fs.StringVar(&metricsAddr, "metrics", "", "expose Prometheus metrics on this address (e.g. :9090)")
	_ = fs.Parse(os.Args[2:])

	if layoutPath == "" {
		log.Fatal("lunabot: --layout is mandatory (§6)")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// Configuration errors are fatal only at startup (§7).
		log.Fatalf("lunabot: %v", err)
	}
	chain, err := kinematics.LoadLayout(layoutPath)
	if err != nil {
		log.Fatalf("lunabot: %v", err)
	}

	if dumpRoot == "" {
		dumpRoot = cfg.DumpDir
	}
	dumpDir, err := config.NewDumpDir(dumpRoot, time.Now())
	if err != nil {
		log.Fatalf("lunabot: %v", err)
	}

	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(baseLogger)
	logger := logging.New(baseLogger)

	provider := newMetricsProvider(cfg.Autonomy.MetricsBackend)
	tracer := tracing.NewTracer(cfg.Autonomy.TracingEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.InfoCtx(ctx, "signal received, shutting down")
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	logger.InfoCtx(ctx, "lunabot starting", "mode", modeArg, "dump_dir", dumpDir, "layout_nodes", chain.Len())

	if metricsAddr != "" {
		if pp, ok := provider.(*metrics.PrometheusProvider); ok {
			go serveMetrics(ctx, metricsAddr, pp, logger)
		}
	}

	switch mode {
	case config.TeleopMode:
		runTeleop(ctx, cfg, logger, tracer)
	case config.AutonomyMode:
		runAutonomy(ctx, cfg, logger, provider, tracer)
	case config.SimMode:
		runSim(ctx, cfg, logger)
	}

	logger.InfoCtx(ctx, "lunabot exiting")
}

func newMetricsProvider(backend string) metrics.Provider {
	switch backend {
	case "prom":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: "lunabot"})
	default:
		return metrics.NewNoopProvider()
	}
}

func serveMetrics(ctx context.Context, addr string, pp *metrics.PrometheusProvider, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pp.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	logger.InfoCtx(ctx, "metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.WarnCtx(ctx, "metrics server stopped", "err", err)
	}
}

// runTeleop runs the lunabase link alone, with a blackboard whose autonomy
// state stays TeleOp, since the perception/planning cores have nothing
// to contribute when a human is driving directly (§1). Each incoming
// SetSteering message is logged; it is not written to the blackboard or
// sent on to the actuators.
func runTeleop(ctx context.Context, cfg *config.File, logger logging.Logger, tracer tracing.Tracer) {
	link, err := dialLunabase(cfg.Teleop.LunabaseAddr)
	if err != nil {
		logger.ErrorCtx(ctx, "lunabase dial failed", "err", err)
		return
	}
	defer link.Close()

	bb := behavior.NewBlackboard(behavior.TeleOp)
	watchdog := behavior.NewWatchdog(0)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cmd, ok := link.pollCommand(ctx)
		if !ok {
			continue
		}
		_, span := tracer.StartSpan(ctx, "teleop.tick")
		now := time.Now()
		watchdog.Beat(now)
		watchdog.Check(bb, now)
		if cmd.Steering != nil {
			logger.InfoCtx(ctx, "steering", "left", cmd.Steering.Left, "right", cmd.Steering.Right)
		}
		span.End()
	}
}

// runAutonomy wires the full perception/planning/behavior stack: the
// occupancy grid and pipeline are constructed but no depth frames are fed
// to the pipeline here (the depth camera driver is an external
// collaborator per §1), the planner replans whenever the target cell
// changes, and the behavior tree drives steering off the resulting path.
func runAutonomy(ctx context.Context, cfg *config.File, logger logging.Logger, provider metrics.Provider, tracer tracing.Tracer) {
	acfg := cfg.Autonomy
	if acfg.GridWidth <= 0 {
		acfg.GridWidth = 128
	}
	if acfg.GridHeight <= 0 {
		acfg.GridHeight = 128
	}
	if acfg.CellSizeMeters <= 0 {
		acfg.CellSizeMeters = 0.05
	}
	if acfg.RadiusInCells <= 0 {
		acfg.RadiusInCells = 4
	}

	grid := occupancy.NewGrid(acfg.GridWidth, acfg.GridHeight, acfg.CellSizeMeters)
	pipeline := occupancy.NewPipeline(occupancy.PipelineConfig{
		MaxSafeGradient:  1.0,
		FeatureSizeCells: 1,
		MinFeatureCount:  2,
		RadiusInCells:    acfg.RadiusInCells,
	})

	planTicks := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "lunabot", Subsystem: "planner", Name: "plans_total", Help: "planning cycles run",
	}})

	sink := webrtcsink.NewDisabled()
	if acfg.WebRTCSignaling != "" {
		if _, err := sink.Offer(); err != nil {
			logger.WarnCtx(ctx, "webrtc offer failed", "err", err)
		}
	}
	defer sink.Close()

	link, err := dialLunabase(acfg.LunabaseAddr)
	if err != nil {
		logger.ErrorCtx(ctx, "lunabase dial failed", "err", err)
		return
	}
	defer link.Close()

	bb := behavior.NewBlackboard(behavior.Autonomy)
	watchdog := behavior.NewWatchdog(0)
	incoming := &behavior.IncomingCommand{}
	tree := behavior.NewAutonomyLoop(bb, incoming)

	// C7: the localizer fuses IMU/AprilTag observations into the
	// published isometry (§4.7). The IMU/AprilTag drivers themselves are
	// external collaborators (§1) that would call SetIMUReading /
	// SetAprilTagObservation from their own goroutines; absent those,
	// Tick still runs every cycle and bb.Isometry tracks its snapshot,
	// per §5's atomic-snapshot wiring from localizer to planner/behavior.
	localizer := localization.NewLocalizer(slog.Default(), 1)

	stageEvents := pubsub.NewRegistry[behavior.AutonomyState](0)
	stageEvents.Subscribe(func(stage behavior.AutonomyState) bool {
		logger.InfoCtx(ctx, "stage changed", "stage", stageName(stage))
		return true
	})

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	var target *planner.Cell
	lastStage := bb.Autonomy

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tickCtx, span := tracer.StartSpan(ctx, "autonomy.tick")
		now := time.Now()
		bb.Now = now

		if cmd, ok := link.pollCommand(tickCtx); ok {
			*incoming = cmd
			if cmd.Steering == nil && !cmd.SoftStop {
				watchdog.Beat(now)
			}
		} else {
			*incoming = behavior.IncomingCommand{}
		}
		watchdog.Check(bb, now)

		localizer.Tick()
		bb.Isometry = localizer.Isometry()

		if bb.TargetCell != nil && (target == nil || *bb.TargetCell != *target) {
			view := grid.Snapshot()
			if _, err := view.CheckedAt(bb.TargetCell.X, bb.TargetCell.Y); err != nil {
				logger.WarnCtx(tickCtx, "target cell rejected", "cell", *bb.TargetCell, "err", err)
				bb.TargetCell = nil
			} else {
				target = bb.TargetCell
				start := planner.Cell{}
				result := planner.Plan(tickCtx, view, start, *target, planner.DefaultBudget)
				result.Path = planner.Decimate(view, result.Path)
				bb.Path = cellsToWaypoints(result.Path, *target, acfg.CellSizeMeters)
				planTicks.Inc(1)
			}
		}

		// The returned Status (Running/Success/Failure) is consumed by
		// the tree's own composites; the blackboard's action queue and
		// Autonomy field are the actual channel of effect for this loop.
		tree.Tick(nil)

		for _, action := range bb.DrainActions() {
			applyAction(action, link)
		}
		if bb.Autonomy != lastStage {
			stageEvents.Call(bb.Autonomy)
			lastStage = bb.Autonomy
		}
		if err := sink.Write(webrtcsink.Snapshot{
			Translation: [3]float64{bb.Isometry.Translation.X, bb.Isometry.Translation.Y, bb.Isometry.Translation.Z},
			Stage:       stageName(bb.Autonomy),
			PathLen:     len(bb.Path),
		}); err != nil {
			logger.WarnCtx(tickCtx, "webrtc publish failed", "err", err)
		}
		span.End()

		// Occupancy state is refreshed whenever a depth frame arrives on
		// the projector's output registry (not modeled here: the depth
		// camera driver is an external collaborator per §1); Reset stays
		// available for an explicit re-scan command.
		_ = pipeline
	}
}

func runSim(ctx context.Context, cfg *config.File, logger logging.Logger) {
	// Simulator process spawning and stdio framing are an external
	// collaborator surface (§1); this mode only logs the configured
	// simulator path since the actual subprocess lifecycle is outside
	// the three cores this spec covers.
	logger.InfoCtx(ctx, "sim mode configured", "simulator_path", cfg.Sim.SimulatorPath)
	<-ctx.Done()
}

func stageName(s behavior.AutonomyState) string {
	switch s {
	case behavior.SoftStop:
		return "SoftStop"
	case behavior.TeleOp:
		return "TeleOp"
	default:
		return "Autonomy"
	}
}

func cellsToWaypoints(cells []planner.Cell, target planner.Cell, cellSize float64) []behavior.Waypoint {
	out := make([]behavior.Waypoint, len(cells))
	for i, c := range cells {
		out[i] = behavior.Waypoint{
			Pos:  cellToWorld(c, cellSize),
			Cell: c,
			Kind: behavior.MoveTo,
		}
	}
	_ = target
	return out
}

func cellToWorld(c planner.Cell, cellSize float64) spatial.Vec2 {
	return spatial.Vec2{X: float64(c.X) * cellSize, Y: float64(c.Y) * cellSize}
}

// lunabaseLink owns the UDP socket and the per-peer reliability state
// machine for the base-station control plane (§6): stdlib net.ListenUDP/
// DialUDP carries the raw datagrams, transport.Peer layers reliability and
// dedup, and wire.Codec frames the application-level messages.
type lunabaseLink struct {
	conn    *net.UDPConn
	builder *transport.Builder
	peer    *transport.Peer
}

func dialLunabase(addr string) (*lunabaseLink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("lunabase: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("lunabase: dial %s: %w", addr, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	return &lunabaseLink{
		conn:    conn,
		builder: transport.NewBuilder(0),
		peer:    transport.NewPeer(0, 0),
	}, nil
}

// pollCommand reads at most one pending datagram and decodes it into an
// IncomingCommand. Absence of a datagram (read timeout) is not an error:
// the caller treats it the same as a NoEvent tick (§4.2).
func (l *lunabaseLink) pollCommand(ctx context.Context) (behavior.IncomingCommand, bool) {
	buf := make([]byte, transport.MaxPayload)
	_ = l.conn.SetReadDeadline(time.Now().Add(5 * time.Millisecond))
	n, err := l.conn.Read(buf)
	if err != nil {
		return behavior.IncomingCommand{}, false
	}
	action := l.peer.Poll(transport.Event{Kind: transport.EventIncomingData, Incoming: buf[:n]}, time.Now())
	if action.Kind == transport.ActionHandleDataAndSend {
		_, _ = l.conn.Write(action.Ack[:])
	}
	if action.Data == nil {
		return behavior.IncomingCommand{}, false
	}
	msg, _, err := wire.DecodeAIMessage(action.Data)
	if err != nil {
		return behavior.IncomingCommand{}, false
	}
	switch msg.Kind {
	case wire.AISetSteering:
		return behavior.IncomingCommand{Steering: &behavior.Steering{
			Left: float64(msg.Steering.Left), Right: float64(msg.Steering.Right),
		}}, true
	case wire.AISetStage:
		if msg.Stage == 0 {
			return behavior.IncomingCommand{SoftStop: true}, true
		}
	case wire.AIHeartbeat:
		return behavior.IncomingCommand{}, true
	}
	return behavior.IncomingCommand{}, false
}

func applyAction(a behavior.Action, link *lunabaseLink) {
	switch a.Kind {
	case behavior.ActionSetSteering:
		payload := wire.EncodeAIMessage(wire.AIMessage{
			Kind: wire.AISetSteering,
			Steering: wire.Steering2{
				Left:  float32(a.Steering.Left),
				Right: float32(a.Steering.Right),
			},
		})
		_, _ = link.conn.Write(payload)
	case behavior.ActionAvoidCell, behavior.ActionClearPointsToAvoid:
		// Surfaced to the occupancy grid via the planner's next plan
		// cycle; no direct wire message exists for these per §6.
	}
}

func (l *lunabaseLink) Close() error {
	l.peer.Poll(transport.Event{Kind: transport.EventDataToSend, ToSend: transport.OutgoingData{Kind: transport.KindCancelAll}}, time.Now())
	return l.conn.Close()
}
