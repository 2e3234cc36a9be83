package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/qmuntal/gltf"
	"gocv.io/x/gocv"
)

// ErrModelUnavailable is returned when the object model cannot be loaded.
var ErrModelUnavailable = errors.New("model unavailable")

// CubeFaces names the environment cubemap faces in load order.
var CubeFaces = [6]string{"px", "nx", "py", "ny", "pz", "nz"}

// Sources lists where the scene assets come from. Each entry is a file path
// or an http(s) URL.
type Sources struct {
	Model   string    `yaml:"model" env:"MODEL"`
	Cubemap [6]string `yaml:"cubemap"`
	Ground  string    `yaml:"ground" env:"GROUND"`
}

// Model is a decoded glTF/GLB document.
type Model struct {
	Name     string
	Version  string
	Nodes    int
	Meshes   int
	Document *gltf.Document
}

// Texture is a decoded image.
type Texture struct {
	Name   string
	Width  int
	Height int
	Image  gocv.Mat
}

// Assets is the result of a load. Missing textures are nil; a missing model
// leaves Object nil.
type Assets struct {
	Object      *Object
	Environment [6]*Texture
	Ground      *Texture
}

// Close releases texture memory.
func (a *Assets) Close() {
	for _, t := range a.Environment {
		if t != nil {
			t.Image.Close()
		}
	}
	if a.Ground != nil {
		a.Ground.Image.Close()
	}
}

// Loader fetches and decodes scene assets.
type Loader struct {
	Client *http.Client
	Log    *logging.Logger
}

// NewLoader creates a Loader with a 30 second HTTP timeout.
func NewLoader(log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Discard()
	}
	return &Loader{
		Client: &http.Client{Timeout: 30 * time.Second},
		Log:    log,
	}
}

// Load fetches the model, the six cubemap faces and the ground texture.
// Texture failures are logged and leave the texture nil. A model failure
// returns the partially loaded Assets together with an error wrapping
// ErrModelUnavailable.
func (l *Loader) Load(ctx context.Context, src Sources) (*Assets, error) {
	a := &Assets{}

	for i, face := range src.Cubemap {
		a.Environment[i] = l.texture(ctx, "env_"+CubeFaces[i], face)
	}
	a.Ground = l.texture(ctx, "ground", src.Ground)

	model, err := l.model(ctx, src.Model)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	a.Object = &Object{Name: model.Name, Model: model}
	return a, nil
}

func (l *Loader) model(ctx context.Context, src string) (*Model, error) {
	if src == "" {
		return nil, errors.New("no model source configured")
	}
	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return DecodeModel(bytes.NewReader(data), modelName(src))
}

// DecodeModel decodes a glTF or GLB document.
func DecodeModel(r io.Reader, name string) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(doc.Nodes) > 0 && doc.Nodes[0].Name != "" {
		name = doc.Nodes[0].Name
	}
	return &Model{
		Name:     name,
		Version:  doc.Asset.Version,
		Nodes:    len(doc.Nodes),
		Meshes:   len(doc.Meshes),
		Document: doc,
	}, nil
}

func (l *Loader) texture(ctx context.Context, name, src string) *Texture {
	if src == "" {
		return nil
	}
	data, err := l.fetch(ctx, src)
	if err != nil {
		l.Log.Warn("texture unavailable", "texture", name, "error", err)
		return nil
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		if err == nil {
			img.Close()
			err = errors.New("empty image")
		}
		l.Log.Warn("texture decode failed", "texture", name, "error", err)
		return nil
	}
	return &Texture{Name: name, Width: img.Cols(), Height: img.Rows(), Image: img}
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", src, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func modelName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
