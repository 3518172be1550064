package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/renderer/metadata"
	"github.com/spaghettifunk/kiwi/engine/renderer/vulkan"
)

var ErrUnsupportedBackend = errors.New("unsupported renderer backend")

type BackendType uint8

const (
	BackendTypeVulkan BackendType = iota
	BackendTypeDirectX
	BackendTypeMetal
	BackendTypeOpenGL
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeVulkan:
		return "vulkan"
	case BackendTypeDirectX:
		return "directx"
	case BackendTypeMetal:
		return "metal"
	case BackendTypeOpenGL:
		return "opengl"
	default:
		return fmt.Sprintf("backend(%d)", uint8(b))
	}
}

// ParseBackendType maps a configuration name to a BackendType.
func ParseBackendType(name string) (BackendType, error) {
	for b := BackendTypeVulkan; b <= BackendTypeOpenGL; b++ {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
}

// Platform is what the backends need from the windowing layer.
type Platform interface {
	vulkan.SurfaceSource
	InstanceProcAddress() unsafe.Pointer
}

type Renderer struct {
	backend     RendererBackend
	FrameNumber uint64
}

// New builds the renderer for kind. Only Vulkan is implemented.
func New(kind BackendType, cfg config.RendererConfig, platform Platform) (*Renderer, error) {
	switch kind {
	case BackendTypeVulkan:
		driver, err := vulkan.LoadDriver(platform.InstanceProcAddress())
		if err != nil {
			return nil, err
		}
		return NewWithBackend(vulkan.New(cfg, platform, driver)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

func NewWithBackend(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32) error {
	return r.backend.Initialize(appName, appWidth, appHeight)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResized(width, height uint32) error {
	return r.backend.Resized(width, height)
}

func (r *Renderer) ApplySettings(cfg config.RendererConfig) {
	r.backend.ApplySettings(cfg)
}

// DrawFrame runs one begin/end cycle. A frame the backend is not ready for is
// skipped without error.
func (r *Renderer) DrawFrame(renderPacket *metadata.RenderPacket) error {
	renderPacket.FrameNumber = r.FrameNumber

	if err := r.backend.BeginFrame(renderPacket.DeltaTime); err != nil {
		if core.IsFrameNotReady(err) {
			return nil
		}
		core.LogError(err.Error())
		return err
	}
	if err := r.backend.EndFrame(renderPacket.DeltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	r.FrameNumber++
	return nil
}
