package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// idleShutdown stops the Python process after this long without a Detect call.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Frames are written to the subprocess as an 8-byte big-endian timestamp in
// milliseconds, a 4-byte big-endian length, then JPEG bytes. Each frame is
// answered with one JSON line of the form {"hands":[...]}.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	modelPath  string

	mu        sync.Mutex
	mode      RunningMode
	lastTS    int64
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the landmark service and fetches the model
// weights. It may block on the network and should run off the frame loop.
// The detector starts in image mode; the Python process is started lazily on
// first detection.
func NewMediaPipeDetector(ctx context.Context, config Config) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found")
	}

	modelPath, err := fetchModel(ctx, config)
	if err != nil {
		return nil, err
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		modelPath:  modelPath,
		mode:       ModeImage,
		lastTS:     -1,
	}, nil
}

// SetRunningMode switches the detector mode. A running subprocess is restarted
// on the next Detect call so it picks up the new mode.
func (d *MediaPipeDetector) SetRunningMode(mode RunningMode) error {
	if mode != ModeImage && mode != ModeVideo {
		return fmt.Errorf("unknown running mode %q", mode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode == mode {
		return nil
	}
	d.mode = mode
	d.lastTS = -1
	return d.shutdown()
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != ModeVideo {
		return nil, ErrNotVideoMode
	}
	if timestampMs <= d.lastTS {
		return nil, fmt.Errorf("%w: %d after %d", ErrTimestampNotIncreasing, timestampMs, d.lastTS)
	}
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(timestampMs))
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	if _, err := d.stdin.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	hands, err := DecodeHands(strings.NewReader(line))
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	d.lastTS = timestampMs
	d.resetIdleTimer()

	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath,
		"--model", d.modelPath,
		"--running-mode", strings.ToLower(string(d.mode)),
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	// A fresh process has no tracking history.
	d.lastTS = -1

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// fetchModel returns a local path for the configured model, downloading it
// into the cache directory when ModelURL is remote.
func fetchModel(ctx context.Context, config Config) (string, error) {
	src := config.ModelURL
	if src == "" {
		src = DefaultModelURL
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("model not found: %w", err)
		}
		return src, nil
	}

	cacheDir := config.ModelCacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.Getenv("HOME"), ".fingertrain", "models")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create model cache: %w", err)
	}

	dst := filepath.Join(cacheDir, filepath.Base(src))
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		return dst, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("build model request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch model: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(cacheDir, "model-*.part")
	if err != nil {
		return "", fmt.Errorf("create model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("download model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("store model: %w", err)
	}

	return dst, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".fingertrain/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".fingertrain/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
