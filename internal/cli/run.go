package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/fingertrain/internal/config"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/game"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/publish"
	"github.com/ayusman/fingertrain/internal/scene"
	"github.com/ayusman/fingertrain/internal/server"
	"github.com/ayusman/fingertrain/internal/telemetry"
	"github.com/ayusman/fingertrain/internal/tray"
	"github.com/ayusman/fingertrain/internal/view"
)

var (
	runConfigPath string
	runHeadless   bool
	runTicks      uint64
	runAddr       string
	runStaticDir  string
	runTray       bool
	runZMQ        string
)

// runDeps overrides the session collaborators. Tests set it to run without
// a camera or the landmark service.
var runDeps game.Deps

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Mount a session and run the frame loops",
	Long: `Mounts a game session: opens the webcam, starts the landmark service,
loads the scene assets and pumps the gesture and scene loops every frame.

By default the frames are pumped by a desktop window. With --headless they
are pumped by a timer, optionally stopping after --ticks frames.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runConfigPath, "config", "c", "", "YAML config file")
	f.BoolVar(&runHeadless, "headless", false, "Run without a window")
	f.Uint64Var(&runTicks, "ticks", 0, "Stop a headless run after this many frames")
	f.StringVar(&runAddr, "addr", config.DefaultServerAddr, "HTTP listen address (empty disables the server)")
	f.StringVar(&runStaticDir, "static", "", "Directory of static files to serve")
	f.BoolVar(&runTray, "tray", false, "Show a system tray webcam toggle")
	f.StringVar(&runZMQ, "zmq", "", "ZeroMQ endpoint to publish state on")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overrides loaded config with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("headless") {
		cfg.Frame.Headless = runHeadless
	}
	if f.Changed("ticks") {
		cfg.Frame.Ticks = runTicks
	}
	if f.Changed("addr") {
		cfg.Server.Addr = runAddr
	}
	if f.Changed("static") {
		cfg.Server.StaticDir = runStaticDir
	}
	if f.Changed("tray") {
		cfg.Tray = runTray
	}
	if f.Changed("zmq") {
		cfg.Publish.Endpoint = runZMQ
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	log := logging.New()
	log.SetLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	sched := frame.NewScheduler()
	renderer := scene.NewSnapshotRenderer(cfg.Window.Width, cfg.Window.Height)

	deps := runDeps
	deps.Renderer = renderer
	if deps.Logger == nil {
		deps.Logger = log
	}
	session := game.NewSession(sched, cfg.Session(), deps)
	if err := session.Mount(ctx); err != nil {
		return fmt.Errorf("failed to mount session: %w", err)
	}

	runErr := pump(ctx, cfg, sched, session, renderer, log)

	if err := session.Unmount(); err != nil {
		log.Warn("unmount reported errors", "error", err)
	}

	st := session.State()
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: frames=%d left=%d right=%d target=%d\n",
		st.Session, sched.Frames(), st.Left, st.Right, st.Target)
	return runErr
}

// pump runs the frame loops and every enabled side service until ctx is
// done, the window closes or a headless run reaches its tick limit.
func pump(ctx context.Context, cfg *config.Config, sched *frame.Scheduler, session *game.Session, renderer *scene.SnapshotRenderer, log *logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Addr != "" {
		srv := server.New(server.Config{
			StaticDir: cfg.Server.StaticDir,
			Game:      session,
			Logger:    log,
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Server.Addr)
		})
	}

	if cfg.Publish.Endpoint != "" {
		pub, err := publish.NewPublisher(cfg.Publish, log)
		if err != nil {
			return fmt.Errorf("failed to start publisher: %w", err)
		}
		g.Go(func() error {
			return pub.Run(gctx, session.Cell())
		})
	}

	if cfg.Tray {
		runTrayMenu(gctx, g, session, cancel, log)
	}

	if cfg.Frame.Headless {
		g.Go(func() error {
			defer cancel()
			err := frame.RunHeadless(gctx, sched, cfg.Headless())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		return g.Wait()
	}

	// The window owns the main goroutine until it closes.
	win := view.New(view.Config{
		Title:  cfg.Window.Title,
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		TPS:    cfg.Frame.Hz,
	}, sched, renderer, session.Cell(), func() (view.JPEGSource, bool) {
		ov, ok := session.Overlay()
		if !ok {
			return nil, false
		}
		return ov, true
	}, session.Resize)
	winErr := win.Run(gctx)
	cancel()
	return errors.Join(winErr, g.Wait())
}

func runTrayMenu(ctx context.Context, g *errgroup.Group, session *game.Session, quit context.CancelFunc, log *logging.Logger) {
	t := tray.New()
	t.OnToggle(func(running bool) {
		if err := session.SetWebcamRunning(running); err != nil {
			log.Warn("webcam toggle failed", "error", err)
		}
	})
	t.OnQuit(quit)
	go t.Run()

	g.Go(func() error {
		states, unsubscribe := session.Cell().Subscribe()
		defer unsubscribe()
		defer t.Quit()
		for {
			select {
			case <-ctx.Done():
				return nil
			case s, ok := <-states:
				if !ok {
					return nil
				}
				t.Show(s)
			}
		}
	})
}
