package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// CommandPool allocates the per-frame command buffers on the graphics family.
type CommandPool struct {
	pool vk.CommandPool
}

// NewCommandPool creates a pool whose buffers can be reset one at a time.
func NewCommandPool(api ResourceAPI, device vk.Device, family uint32) (*CommandPool, error) {
	pool, ret := api.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	})
	if err := NewError(ret); err != nil {
		return nil, creationError("create command pool", err)
	}
	return &CommandPool{pool: pool}, nil
}

// Allocate returns count primary command buffers.
func (c *CommandPool) Allocate(api ResourceAPI, device vk.Device, count int) ([]vk.CommandBuffer, error) {
	buffers, ret := api.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	})
	if err := NewError(ret); err != nil {
		return nil, creationError("allocate command buffers", err)
	}
	return buffers, nil
}

// Destroy frees the pool and every buffer allocated from it.
func (c *CommandPool) Destroy(api ResourceAPI, device vk.Device) {
	if c == nil || c.pool == nil {
		return
	}
	api.DestroyCommandPool(device, c.pool)
	c.pool = nil
}
