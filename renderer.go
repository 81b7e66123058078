package raytracer

import (
	"context"

	vk "github.com/vulkan-go/vulkan"
)

// Renderer owns every object from the instance down to the frame slots and the
// engine that draws with them.
type Renderer struct {
	driver Driver
	window Window
	cfg    Config
	log    *Logger

	instance     *Instance
	surface      vk.Surface
	device       *GraphicsDevice
	swapchain    *Swapchain
	renderPass   vk.RenderPass
	pipeline     *Pipeline
	framebuffers []vk.Framebuffer
	commandPool  *CommandPool
	frames       *FrameRing
	engine       *Engine

	destroyed bool
}

// NewRenderer runs startup in dependency order. A failing step releases everything
// created before it, in reverse.
func NewRenderer(driver Driver, window Window, cfg Config, log *Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		driver:  driver,
		window:  window,
		cfg:     cfg,
		log:     log,
		surface: vk.NullSurface,
	}
	if err := r.init(); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init() error {
	var err error

	r.instance, err = CreateInstance(r.driver, r.cfg, r.window.RequiredInstanceExtensions(), r.log)
	if err != nil {
		return err
	}
	if r.cfg.EnableValidation {
		if err := r.instance.EnableDebugReport(r.driver, r.log); err != nil {
			return err
		}
	}

	r.surface, err = r.window.CreateSurface(r.instance.Handle)
	if err != nil {
		r.surface = vk.NullSurface
		r.log.Error("failed to create surface", "error", err)
		return creationError("create surface", err)
	}

	candidate, err := NewProber(r.driver, r.surface, r.cfg.DeviceExtensions, r.log).SelectDevice(r.instance.Handle)
	if err != nil {
		return err
	}
	r.device, err = CreateLogicalDevice(r.driver, candidate, DeviceConfig{
		Extensions: r.cfg.DeviceExtensions,
		Layers:     r.cfg.Layers(),
	}, r.log)
	if err != nil {
		return err
	}

	width, height := r.window.FramebufferSize()
	r.swapchain, err = CreateSwapchain(r.driver, r.device, r.surface, width, height, r.log)
	if err != nil {
		return err
	}

	r.renderPass, err = CreateRenderPass(r.driver, r.device.Handle, r.swapchain.Format.Format, r.log)
	if err != nil {
		return err
	}

	vert, frag := LoadShaderPair(r.cfg.ShaderDir, r.log)
	r.pipeline, err = CreatePipeline(r.driver, r.device.Handle, r.renderPass, r.swapchain.Extent, vert, frag, r.log)
	if err != nil {
		return err
	}

	r.framebuffers, err = CreateFramebuffers(r.driver, r.device.Handle, r.swapchain.Views, r.renderPass, r.swapchain.Extent, r.log)
	if err != nil {
		return err
	}

	r.commandPool, err = NewCommandPool(r.driver, r.device.Handle, *r.device.Indices.Graphics)
	if err != nil {
		r.log.Error("failed to create command pool", "error", err)
		return err
	}

	r.frames, err = NewFrameRing(r.driver, r.device.Handle, r.commandPool, r.cfg.FramesInFlight, r.log)
	if err != nil {
		return err
	}

	r.engine = NewEngine(r.driver, EngineResources{
		Device:       r.device,
		Swapchain:    r.swapchain,
		Framebuffers: r.framebuffers,
		RenderPass:   r.renderPass,
		Pipeline:     r.pipeline,
		Frames:       r.frames,
	}, r.cfg, r.log)

	r.log.Info("renderer ready",
		"device", r.device.Name,
		"frames_in_flight", r.frames.Len(),
		"images", len(r.swapchain.Images))
	return nil
}

// Run draws until the window should close or ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	if r.engine == nil {
		return ErrDestroyed
	}
	return r.engine.Run(ctx, r.window)
}

// Stats reports the engine counters.
func (r *Renderer) Stats() FrameStats {
	if r.engine == nil {
		return FrameStats{}
	}
	return r.engine.Stats()
}

// Destroy waits for the device to go idle, then releases everything in reverse
// dependency order. Calling it again does nothing.
func (r *Renderer) Destroy() {
	if r == nil || r.destroyed {
		return
	}
	r.destroyed = true

	if r.device != nil && r.device.Handle != nil {
		if err := NewError(r.driver.DeviceWaitIdle(r.device.Handle)); err != nil {
			r.log.Warn("device wait idle failed", "error", err)
		}
		device := r.device.Handle

		r.frames.Destroy(r.driver, device)
		r.frames = nil
		r.commandPool.Destroy(r.driver, device)
		r.commandPool = nil
		DestroyFramebuffers(r.driver, device, r.framebuffers)
		r.framebuffers = nil
		r.pipeline.Destroy(r.driver, device)
		r.pipeline = nil
		if r.renderPass != vk.NullRenderPass {
			r.driver.DestroyRenderPass(device, r.renderPass)
			r.renderPass = vk.NullRenderPass
		}
		if r.swapchain != nil {
			r.swapchain.DestroyViews(r.driver, device)
			r.swapchain.Destroy(r.driver, device)
			r.swapchain = nil
		}
		r.device.Destroy(r.driver)
	}
	r.device = nil
	r.engine = nil

	if r.instance != nil {
		if r.surface != vk.NullSurface {
			r.driver.DestroySurface(r.instance.Handle, r.surface)
			r.surface = vk.NullSurface
		}
		r.instance.Destroy(r.driver)
		r.instance = nil
	}
	r.log.Debug("renderer destroyed")
}
