package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// FrameSlot is one frame in flight: a command buffer and the three primitives
// ordering its acquire, render and present.
type FrameSlot struct {
	Command vk.CommandBuffer
	// ImageAvailable is signaled when the acquired image may be rendered to.
	ImageAvailable vk.Semaphore
	// RenderFinished is signaled when the slot's commands completed on the GPU.
	RenderFinished vk.Semaphore
	// InFlight is signaled when every GPU operation of the slot's last submission is done.
	InFlight vk.Fence
}

// FrameRing owns the fixed set of frame slots.
type FrameRing struct {
	slots []FrameSlot
}

// NewFrameRing allocates count slots. Fences start signaled so the first wait on each
// slot returns at once.
func NewFrameRing(api ResourceAPI, device vk.Device, pool *CommandPool, count int, log *Logger) (*FrameRing, error) {
	buffers, err := pool.Allocate(api, device, count)
	if err != nil {
		log.Error("failed to allocate command buffers", "count", count, "error", err)
		return nil, err
	}

	ring := &FrameRing{slots: make([]FrameSlot, 0, count)}
	for i := 0; i < count; i++ {
		slot := FrameSlot{Command: buffers[i]}
		var ret vk.Result

		slot.ImageAvailable, ret = api.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		})
		if err := NewError(ret); err != nil {
			log.Error("failed to create image-available semaphore", "slot", i, "error", err)
			ring.Destroy(api, device)
			return nil, creationError("create semaphore", err)
		}

		slot.RenderFinished, ret = api.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		})
		if err := NewError(ret); err != nil {
			log.Error("failed to create render-finished semaphore", "slot", i, "error", err)
			api.DestroySemaphore(device, slot.ImageAvailable)
			ring.Destroy(api, device)
			return nil, creationError("create semaphore", err)
		}

		slot.InFlight, ret = api.CreateFence(device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		})
		if err := NewError(ret); err != nil {
			log.Error("failed to create in-flight fence", "slot", i, "error", err)
			api.DestroySemaphore(device, slot.ImageAvailable)
			api.DestroySemaphore(device, slot.RenderFinished)
			ring.Destroy(api, device)
			return nil, creationError("create fence", err)
		}

		ring.slots = append(ring.slots, slot)
	}
	return ring, nil
}

func (r *FrameRing) Len() int { return len(r.slots) }

// Slot returns the slot for frame number n.
func (r *FrameRing) Slot(n int) *FrameSlot {
	return &r.slots[n%len(r.slots)]
}

// Destroy releases every slot's semaphores and fence. Command buffers go with their pool.
func (r *FrameRing) Destroy(api ResourceAPI, device vk.Device) {
	if r == nil {
		return
	}
	for _, slot := range r.slots {
		api.DestroySemaphore(device, slot.ImageAvailable)
		api.DestroySemaphore(device, slot.RenderFinished)
		api.DestroyFence(device, slot.InFlight)
	}
	r.slots = nil
}
