package raytracer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FrameStats counts what the engine observed since it started.
type FrameStats struct {
	Frames     uint64
	Suboptimal uint64
	OutOfDate  uint64
	// PresentErrors counts any other non-success present result.
	PresentErrors uint64
}

// Engine drives the acquire, record, submit and present loop over a ring of frame slots.
// It is not safe for concurrent use; one goroutine owns the loop.
type Engine struct {
	api    CommandAPI
	device vk.Device

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	swapchain    *Swapchain
	framebuffers []vk.Framebuffer
	pass         vk.RenderPass
	pipeline     vk.Pipeline

	ring    *FrameRing
	current int

	fenceTimeout   uint64
	acquireTimeout uint64
	clearColor     [4]float32

	stats FrameStats
	log   *Logger
}

// EngineResources are the shared, read-only objects every frame slot draws with.
type EngineResources struct {
	Device       *GraphicsDevice
	Swapchain    *Swapchain
	Framebuffers []vk.Framebuffer
	RenderPass   vk.RenderPass
	Pipeline     *Pipeline
	Frames       *FrameRing
}

func NewEngine(api CommandAPI, res EngineResources, cfg Config, log *Logger) *Engine {
	return &Engine{
		api:            api,
		device:         res.Device.Handle,
		graphicsQueue:  res.Device.GraphicsQueue,
		presentQueue:   res.Device.PresentQueue,
		swapchain:      res.Swapchain,
		framebuffers:   res.Framebuffers,
		pass:           res.RenderPass,
		pipeline:       res.Pipeline.Handle,
		ring:           res.Frames,
		fenceTimeout:   timeoutNanos(cfg.FenceTimeout),
		acquireTimeout: timeoutNanos(cfg.AcquireTimeout),
		clearColor:     cfg.ClearColor,
		log:            log,
	}
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() FrameStats { return e.stats }

// CurrentSlot is the index of the slot the next DrawFrame uses.
func (e *Engine) CurrentSlot() int { return e.current }

// DrawFrame runs one iteration on the current slot and advances to the next one.
// Any error is fatal for the loop. Present results other than success are counted
// and logged only.
func (e *Engine) DrawFrame() error {
	slot := e.ring.Slot(e.current)

	// the slot's previous submission must be done before anything of it is touched
	switch ret := e.api.WaitForFence(e.device, slot.InFlight, e.fenceTimeout); ret {
	case vk.Success:
	case vk.Timeout:
		return frameError("wait for fence", errors.Wrapf(ErrTimeout, "slot %d", e.current))
	default:
		return frameError("wait for fence", NewError(ret))
	}
	if err := NewError(e.api.ResetFence(e.device, slot.InFlight)); err != nil {
		return frameError("reset fence", err)
	}
	if err := NewError(e.api.ResetCommandBuffer(slot.Command)); err != nil {
		return frameError("reset command buffer", err)
	}

	imageIndex, ret := e.api.AcquireNextImage(e.device, e.swapchain.Handle, e.acquireTimeout, slot.ImageAvailable)
	switch ret {
	case vk.Success:
	case vk.Suboptimal:
		e.stats.Suboptimal++
		e.log.Warn("acquired image from suboptimal swap chain", "image", imageIndex)
	case vk.Timeout, vk.NotReady:
		return frameError("acquire next image", errors.Wrapf(ErrTimeout, "slot %d", e.current))
	default:
		return frameError("acquire next image", NewError(ret))
	}
	if int(imageIndex) >= len(e.framebuffers) {
		return frameError("acquire next image", errors.Errorf("image index %d out of range of %d framebuffers", imageIndex, len(e.framebuffers)))
	}

	if err := e.record(slot.Command, imageIndex); err != nil {
		return frameError("record command buffer", err)
	}

	ret = e.api.QueueSubmit(e.graphicsQueue, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.ImageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.Command},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.RenderFinished},
	}}, slot.InFlight)
	if err := NewError(ret); err != nil {
		return frameError("queue submit", fmt.Errorf("%w: %w", ErrFrame, err))
	}

	e.present(slot, imageIndex)

	e.log.Trace("frame drawn", "frame", e.stats.Frames, "slot", e.current, "image", imageIndex)
	e.stats.Frames++
	e.current = (e.current + 1) % e.ring.Len()
	return nil
}

func (e *Engine) record(cmd vk.CommandBuffer, imageIndex uint32) error {
	ret := e.api.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := NewError(ret); err != nil {
		return err
	}

	e.api.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  e.pass,
		Framebuffer: e.framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: e.swapchain.Extent,
		},
		ClearValueCount: 1,
		PClearValues: []vk.ClearValue{
			vk.NewClearValue(e.clearColor[:]),
		},
	}, vk.SubpassContentsInline)
	e.api.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, e.pipeline)
	e.api.CmdDraw(cmd, 3, 1, 0, 0)
	e.api.CmdEndRenderPass(cmd)

	return NewError(e.api.EndCommandBuffer(cmd))
}

func (e *Engine) present(slot *FrameSlot, imageIndex uint32) {
	ret := e.api.QueuePresent(e.presentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{e.swapchain.Handle},
		PImageIndices:      []uint32{imageIndex},
	})
	// the swap chain is never rebuilt, a stale one keeps presenting until the window closes
	switch ret {
	case vk.Success:
	case vk.Suboptimal:
		e.stats.Suboptimal++
		e.log.Warn("present on suboptimal swap chain", "image", imageIndex)
	case vk.ErrorOutOfDate:
		e.stats.OutOfDate++
		e.log.Warn("present on out of date swap chain", "image", imageIndex)
	default:
		e.stats.PresentErrors++
		e.log.Warn("present failed", "image", imageIndex, "error", NewError(ret))
	}
}

// Run draws frames until window asks to close or ctx is done, then waits for the
// device to go idle. ctx and the window are sampled once per iteration.
func (e *Engine) Run(ctx context.Context, window Window) error {
	for {
		select {
		case <-ctx.Done():
			e.log.Info("render loop cancelled", "frames", e.stats.Frames)
			return e.drain(nil)
		default:
		}
		if window.ShouldClose() {
			e.log.Info("window closed", "frames", e.stats.Frames)
			return e.drain(nil)
		}
		if err := e.DrawFrame(); err != nil {
			return e.drain(err)
		}
		window.PollEvents()
	}
}

// drain blocks until the device finished every submitted frame.
func (e *Engine) drain(err error) error {
	if idleErr := NewError(e.api.DeviceWaitIdle(e.device)); idleErr != nil {
		e.log.Error("device wait idle failed", "error", idleErr)
		if err == nil {
			err = frameError("device wait idle", idleErr)
		}
	}
	return err
}
