package raytracer

import (
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

const (
	SwapchainExtension = "VK_KHR_swapchain"
	KhronosValidation  = "VK_LAYER_KHRONOS_validation"
	// DebugReportExtension is enabled on the instance when validation is on.
	DebugReportExtension = "VK_EXT_debug_report"
)

// Config carries every knob the renderer reads. The zero value is not usable,
// start from DefaultConfig.
type Config struct {
	AppName      string
	WindowWidth  int
	WindowHeight int

	// EnableValidation turns on ValidationLayers on the instance and device
	// and forwards their messages to the logger.
	EnableValidation bool
	ValidationLayers []string
	DeviceExtensions []string

	// FramesInFlight is the number of frame slots cycled by the engine.
	FramesInFlight int

	// FenceTimeout and AcquireTimeout bound the two blocking calls of a frame.
	// Zero waits forever.
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration

	ShaderDir  string
	ClearColor [4]float32

	LogLevel slog.Level
	LogPath  string
}

func DefaultConfig() Config {
	return Config{
		AppName:          "Voxel Raytracer",
		WindowWidth:      800,
		WindowHeight:     450,
		ValidationLayers: []string{KhronosValidation},
		DeviceExtensions: []string{SwapchainExtension},
		FramesInFlight:   2,
		FenceTimeout:     5 * time.Second,
		AcquireTimeout:   5 * time.Second,
		ShaderDir:        "shaders",
		ClearColor:       [4]float32{0, 0, 0, 1},
		LogLevel:         LevelInfo,
	}
}

func (c Config) Validate() error {
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return errors.Errorf("config: invalid window size %dx%d", c.WindowWidth, c.WindowHeight)
	}
	if c.FramesInFlight < 1 {
		return errors.Errorf("config: frames in flight must be at least 1, got %d", c.FramesInFlight)
	}
	if c.FenceTimeout < 0 || c.AcquireTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	hasSwapchain := false
	for _, ext := range c.DeviceExtensions {
		if trimNull(ext) == SwapchainExtension {
			hasSwapchain = true
		}
	}
	if !hasSwapchain {
		return errors.Errorf("config: device extensions must include %s", SwapchainExtension)
	}
	return nil
}

// Layers returns the layers to enable, none when validation is off.
func (c Config) Layers() []string {
	if !c.EnableValidation {
		return nil
	}
	return c.ValidationLayers
}

// timeoutNanos converts d to the nanosecond count vulkan waits take.
func timeoutNanos(d time.Duration) uint64 {
	if d <= 0 {
		return vk.MaxUint64
	}
	return uint64(d.Nanoseconds())
}
