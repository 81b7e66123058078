package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamilyIndices maps the graphics and present capabilities to a queue family.
// A nil field means no family offers the capability.
type QueueFamilyIndices struct {
	Graphics *uint32
	Present  *uint32
}

// IsComplete is true once both capabilities resolved to some family.
func (q QueueFamilyIndices) IsComplete() bool {
	return q.Graphics != nil && q.Present != nil
}

// Shared reports whether graphics and presentation use the same family.
// Only meaningful on complete indices.
func (q QueueFamilyIndices) Shared() bool {
	return q.IsComplete() && *q.Graphics == *q.Present
}

// Unique lists the distinct families, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	var families []uint32
	if q.Graphics != nil {
		families = append(families, *q.Graphics)
	}
	if q.Present != nil && (q.Graphics == nil || *q.Present != *q.Graphics) {
		families = append(families, *q.Present)
	}
	return families
}

// FindQueueFamilies records the first family with graphics support and, independently,
// the first family able to present to surface. Families whose surface support query
// fails are skipped.
func FindQueueFamilies(api CapabilityAPI, gpu vk.PhysicalDevice, surface vk.Surface, log *Logger) QueueFamilyIndices {
	var indices QueueFamilyIndices

	for i, family := range api.QueueFamilies(gpu) {
		index := uint32(i)
		if indices.Graphics == nil && family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics = &index
		}
		if indices.Present == nil {
			supported, ret := api.SurfaceSupport(gpu, index, surface)
			if isError(ret) {
				log.Warn("surface support query failed", "family", index, "error", NewError(ret))
			} else if supported {
				indices.Present = &index
			}
		}
		if indices.IsComplete() {
			break
		}
	}
	return indices
}
