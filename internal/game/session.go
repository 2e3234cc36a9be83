package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ayusman/fingertrain/internal/capture"
	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/overlay"
	"github.com/ayusman/fingertrain/internal/resource"
	"github.com/ayusman/fingertrain/internal/scene"
	"github.com/ayusman/fingertrain/internal/telemetry"
	"github.com/google/uuid"
)

// MaxTargetDigit is the largest random target shown to the player.
const MaxTargetDigit = 5

// Config holds session settings.
type Config struct {
	Camera    capture.Config
	Detector  detector.Config
	Threshold float64
	Scene     scene.Config
	Assets    scene.Sources
	// Overlay disables the landmark overlay when false.
	Overlay bool
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		Camera:    capture.DefaultConfig(),
		Detector:  detector.DefaultConfig(),
		Threshold: 25,
		Scene:     scene.DefaultConfig(),
		Overlay:   true,
	}
}

// Deps overrides how collaborators are constructed. Nil fields use the real
// webcam, MediaPipe detector and asset loader.
type Deps struct {
	OpenVideo   func(ctx context.Context) (capture.Video, error)
	NewDetector func(ctx context.Context) (detector.Detector, error)
	LoadAssets  func(ctx context.Context) (*scene.Assets, error)
	Renderer    scene.Renderer
	Steering    scene.Steering
	RandomDigit func() int
	Logger      *logging.Logger
}

// Session is one mounted game: both loops, their collaborators and the
// shared control state. A Session is mounted at most once.
type Session struct {
	config Config
	deps   Deps
	sched  *frame.Scheduler
	log    *logging.Logger
	cell   *control.Cell

	video    *resource.Lazy[capture.Video]
	detector *resource.Lazy[detector.Detector]
	overlay  *resource.Lazy[*overlay.Overlay]
	assets   *resource.Lazy[*scene.Assets]

	gestures *GestureLoop
	scene    *scene.Loop

	mu      sync.Mutex
	id      string
	mounted bool
	done    bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSession creates an unmounted session driven by sched.
func NewSession(sched *frame.Scheduler, config Config, deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = logging.New()
	}
	if deps.RandomDigit == nil {
		deps.RandomDigit = func() int { return rand.Intn(MaxTargetDigit + 1) }
	}
	s := &Session{
		config: config,
		deps:   deps,
		sched:  sched,
		log:    deps.Logger,
		cell:   control.NewCell(control.State{}),
	}
	if s.deps.OpenVideo == nil {
		s.deps.OpenVideo = s.openWebcam
	}
	if s.deps.NewDetector == nil {
		s.deps.NewDetector = s.newMediaPipe
	}
	if s.deps.LoadAssets == nil {
		s.deps.LoadAssets = func(ctx context.Context) (*scene.Assets, error) {
			return scene.NewLoader(s.log).Load(ctx, s.config.Assets)
		}
	}
	return s
}

// Mount draws the target digit, starts every collaborator loading and starts
// the scene loop. The gesture loop starts once the video has a frame.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted || s.done {
		return ErrAlreadyMounted
	}

	s.id = uuid.NewString()
	s.log = s.deps.Logger.With("session", s.id)
	target := s.deps.RandomDigit()
	s.cell.Update(func(st *control.State) {
		st.Session = s.id
		st.Target = target
	})

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.video = resource.NewLazy[capture.Video]("video")
	s.detector = resource.NewLazy[detector.Detector]("detector")
	s.assets = resource.NewLazy[*scene.Assets]("assets")
	if s.config.Overlay {
		s.overlay = resource.NewLazy[*overlay.Overlay]("overlay")
	}

	s.gestures = NewGestureLoop(s.sched, s.video, s.detector, s.overlay, GestureOptions{
		Threshold: s.config.Threshold,
		Cell:      s.cell,
		Logger:    s.log,
	})
	s.scene = scene.NewLoop(s.sched, s.deps.Renderer, s.assets, s.config.Scene, scene.Options{
		Steering: s.deps.Steering,
		Cell:     s.cell,
		Logger:   s.log,
	})

	s.video.Start(ctx, s.loadVideo)
	s.detector.Start(ctx, s.loadDetector)
	s.assets.Start(ctx, s.loadAssets)
	if s.overlay != nil {
		s.overlay.Start(ctx, s.loadOverlay)
	}

	s.wg.Add(1)
	go s.startGesturesWhenLoaded(ctx)

	s.scene.Start()
	s.mounted = true
	s.log.Info("session mounted", "target", target)
	return nil
}

func (s *Session) openWebcam(ctx context.Context) (capture.Video, error) {
	cam := capture.NewWebcam(s.config.Camera)
	if err := cam.Open(ctx); err != nil {
		return nil, err
	}
	return cam, nil
}

func (s *Session) newMediaPipe(ctx context.Context) (detector.Detector, error) {
	return detector.NewMediaPipeDetector(ctx, s.config.Detector)
}

func (s *Session) loadVideo(ctx context.Context) (capture.Video, error) {
	v, err := s.deps.OpenVideo(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		s.fail(err)
		return nil, err
	}
	return v, nil
}

func (s *Session) loadDetector(ctx context.Context) (detector.Detector, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "detector.create")
	defer span.End()

	d, err := s.deps.NewDetector(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
		span.RecordError(err)
		s.fail(err)
		return nil, err
	}
	if err := d.SetRunningMode(detector.ModeVideo); err != nil {
		d.Close()
		err = fmt.Errorf("%w: set video mode: %v", ErrDetectorUnavailable, err)
		span.RecordError(err)
		s.fail(err)
		return nil, err
	}
	s.log.Info("hand detector ready")
	return d, nil
}

func (s *Session) loadAssets(ctx context.Context) (*scene.Assets, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scene.load_assets")
	defer span.End()

	a, err := s.deps.LoadAssets(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrAssetUnavailable, err)
		span.RecordError(err)
		s.fail(err)
		if a == nil {
			return nil, err
		}
		// Keep whatever textures did load.
		return a, nil
	}
	return a, nil
}

func (s *Session) loadOverlay(ctx context.Context) (*overlay.Overlay, error) {
	v, err := s.video.Wait(ctx)
	if err != nil {
		return nil, err
	}
	select {
	case <-v.Loaded():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	w, h := v.Size()
	return overlay.New(w, h), nil
}

func (s *Session) startGesturesWhenLoaded(ctx context.Context) {
	defer s.wg.Done()

	v, err := s.video.Wait(ctx)
	if err != nil {
		return
	}
	select {
	case <-v.Loaded():
	case <-ctx.Done():
		return
	}
	s.log.Info("video loaded, starting gesture loop")
	s.gestures.Start()
}

func (s *Session) fail(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.Error("session collaborator failed", "error", err)
	s.cell.AddError(err.Error())
}

// Unmount stops both loops and releases every loaded collaborator.
func (s *Session) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return ErrNotMounted
	}
	s.mounted = false
	s.done = true

	s.scene.Stop()
	s.gestures.Stop()
	s.cancel()
	s.wg.Wait()
	<-s.video.Done()
	<-s.detector.Done()
	<-s.assets.Done()
	if s.overlay != nil {
		<-s.overlay.Done()
	}
	s.gestures.Release()

	var errs []error
	if v, err := s.video.Get(); err == nil {
		errs = append(errs, v.Close())
	}
	if d, err := s.detector.Get(); err == nil {
		errs = append(errs, d.Close())
	}
	if s.overlay != nil {
		if ov, err := s.overlay.Get(); err == nil {
			errs = append(errs, ov.Close())
		}
	}
	if a, err := s.assets.Get(); err == nil && a != nil {
		a.Close()
	}

	s.log.Info("session unmounted")
	return errors.Join(errs...)
}

// ID returns the session id, empty before Mount.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Cell returns the shared control state.
func (s *Session) Cell() *control.Cell { return s.cell }

// State returns the current control state.
func (s *Session) State() control.State { return s.cell.Load() }

// Gestures returns the gesture loop, nil before Mount.
func (s *Session) Gestures() *GestureLoop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gestures
}

// Scene returns the scene loop, nil before Mount.
func (s *Session) Scene() *scene.Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Overlay returns the overlay once it is ready.
func (s *Session) Overlay() (*overlay.Overlay, bool) {
	s.mu.Lock()
	lazy := s.overlay
	s.mu.Unlock()
	if lazy == nil {
		return nil, false
	}
	ov, err := lazy.Get()
	return ov, err == nil
}

// SetWebcamRunning starts or stops the gesture loop.
func (s *Session) SetWebcamRunning(running bool) error {
	g := s.Gestures()
	if g == nil || !s.Mounted() {
		return ErrNotMounted
	}
	g.SetRunning(running)
	s.log.Info("webcam toggled", "running", running)
	return nil
}

// ToggleWebcam flips the gesture loop gate and returns the new state.
func (s *Session) ToggleWebcam() (bool, error) {
	g := s.Gestures()
	if g == nil || !s.Mounted() {
		return false, ErrNotMounted
	}
	running := g.Toggle()
	s.log.Info("webcam toggled", "running", running)
	return running, nil
}

// Mounted reports whether the session is mounted.
func (s *Session) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Resize forwards a window size change to the scene loop.
func (s *Session) Resize(width, height int) {
	if sc := s.Scene(); sc != nil {
		sc.Resize(width, height)
	}
}
