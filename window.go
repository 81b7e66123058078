package raytracer

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Window is the host window the renderer presents into.
type Window interface {
	// RequiredInstanceExtensions lists the instance extensions the surface needs.
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (width, height int)
	ShouldClose() bool
	PollEvents()
}

// GLFWWindow adapts a glfw window created with the NoAPI client hint.
type GLFWWindow struct {
	window *glfw.Window
}

var _ Window = (*GLFWWindow)(nil)

func NewGLFWWindow(window *glfw.Window) *GLFWWindow {
	return &GLFWWindow{window: window}
}

// OpenGLFWWindow creates a fixed size window with no client API. glfw must be
// initialized and the call made from the main thread.
func OpenGLFWWindow(cfg Config) (*GLFWWindow, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err := glfw.CreateWindow(cfg.WindowWidth, cfg.WindowHeight, cfg.AppName, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return NewGLFWWindow(window), nil
}

func (w *GLFWWindow) RequiredInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (w *GLFWWindow) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *GLFWWindow) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *GLFWWindow) PollEvents() {
	glfw.PollEvents()
}

// Destroy closes the native window.
func (w *GLFWWindow) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
}
