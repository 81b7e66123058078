package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// adaptiveExtent is the current-extent width a surface reports when the swap chain
// decides its own size.
var adaptiveExtent uint32 = vk.MaxUint32

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB in the non-linear sRGB color space and
// falls back to the first format offered. formats must not be empty.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every surface supports.
func ChoosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent when it is fixed. Otherwise the
// framebuffer size is clamped into the surface's supported range.
func ChooseExtent(caps vk.SurfaceCapabilities, framebufferWidth, framebufferHeight int) vk.Extent2D {
	if caps.CurrentExtent.Width != adaptiveExtent {
		return caps.CurrentExtent
	}
	if framebufferWidth < 0 {
		framebufferWidth = 0
	}
	if framebufferHeight < 0 {
		framebufferHeight = 0
	}
	return vk.Extent2D{
		Width:  clampUint32(uint32(framebufferWidth), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(uint32(framebufferHeight), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image above the minimum, capped by the maximum when
// the surface bounds it (MaxImageCount > 0).
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// SharingMode returns how swap chain images are shared between the graphics and
// present families. Distinct families need concurrent sharing with both listed.
func SharingMode(indices QueueFamilyIndices) (vk.SharingMode, []uint32) {
	if indices.Shared() {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, []uint32{*indices.Graphics, *indices.Present}
}

// chooseCompositeAlpha picks the first supported mode, one of them is always set.
func chooseCompositeAlpha(caps vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func choosePreTransform(caps vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if caps.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

// Swapchain is the chain of presentable images and the views derived from them.
type Swapchain struct {
	Handle      vk.Swapchain
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView
}

// SwapchainCreateInfo fills the create info for surface from support and indices.
func SwapchainCreateInfo(surface vk.Surface, support SurfaceSupport, indices QueueFamilyIndices, framebufferWidth, framebufferHeight int) vk.SwapchainCreateInfo {
	caps := support.Capabilities
	format := ChooseSurfaceFormat(support.Formats)
	sharing, families := SharingMode(indices)

	return vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               surface,
		MinImageCount:         ChooseImageCount(caps),
		ImageFormat:           format.Format,
		ImageColorSpace:       format.ColorSpace,
		ImageExtent:           ChooseExtent(caps, framebufferWidth, framebufferHeight),
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          choosePreTransform(caps),
		CompositeAlpha:        chooseCompositeAlpha(caps),
		PresentMode:           ChoosePresentMode(support.PresentModes),
		Clipped:               vk.True,
		OldSwapchain:          vk.NullSwapchain,
	}
}

// CreateSwapchain builds the swap chain for device on surface and one view per image.
// Any failure, including a single image view, destroys what was created and fails.
func CreateSwapchain(api ResourceAPI, device *GraphicsDevice, surface vk.Surface, framebufferWidth, framebufferHeight int, log *Logger) (*Swapchain, error) {
	if !device.Support.Adequate() {
		return nil, negotiationError("create swap chain", ErrInadequateSurface)
	}
	info := SwapchainCreateInfo(surface, device.Support, device.Indices, framebufferWidth, framebufferHeight)

	handle, ret := api.CreateSwapchain(device.Handle, &info)
	if err := NewError(ret); err != nil {
		log.Error("failed to create swap chain", "error", err)
		return nil, creationError("create swap chain", err)
	}

	sc := &Swapchain{
		Handle:      handle,
		Format:      vk.SurfaceFormat{Format: info.ImageFormat, ColorSpace: info.ImageColorSpace},
		PresentMode: info.PresentMode,
		Extent:      info.ImageExtent,
	}

	images, ret := api.SwapchainImages(device.Handle, handle)
	if err := NewError(ret); err != nil {
		log.Error("failed to get swap chain images", "error", err)
		api.DestroySwapchain(device.Handle, handle)
		return nil, creationError("get swap chain images", err)
	}
	sc.Images = images

	views, err := CreateImageViews(api, device.Handle, images, sc.Format.Format, log)
	if err != nil {
		api.DestroySwapchain(device.Handle, handle)
		return nil, err
	}
	sc.Views = views

	log.Info("created swap chain",
		"images", len(images),
		"format", sc.Format.Format,
		"present_mode", sc.PresentMode,
		"width", sc.Extent.Width,
		"height", sc.Extent.Height)
	return sc, nil
}

// CreateImageViews creates one 2D color view per image. A failure on any image
// releases the views already created.
func CreateImageViews(api ResourceAPI, device vk.Device, images []vk.Image, format vk.Format, log *Logger) ([]vk.ImageView, error) {
	views := make([]vk.ImageView, 0, len(images))
	for i, image := range images {
		view, ret := api.CreateImageView(device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err := NewError(ret); err != nil {
			log.Error("failed to create image view", "image", i, "error", err)
			for _, v := range views {
				api.DestroyImageView(device, v)
			}
			return nil, creationError("create image view", err)
		}
		views = append(views, view)
	}
	return views, nil
}

// CreateFramebuffers creates one single-attachment framebuffer per view at extent.
func CreateFramebuffers(api ResourceAPI, device vk.Device, views []vk.ImageView, pass vk.RenderPass, extent vk.Extent2D, log *Logger) ([]vk.Framebuffer, error) {
	framebuffers := make([]vk.Framebuffer, 0, len(views))
	for i, view := range views {
		fb, ret := api.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      pass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		})
		if err := NewError(ret); err != nil {
			log.Error("failed to create framebuffer", "image", i, "error", err)
			DestroyFramebuffers(api, device, framebuffers)
			return nil, creationError("create framebuffer", err)
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}

func DestroyFramebuffers(api ResourceAPI, device vk.Device, framebuffers []vk.Framebuffer) {
	for _, fb := range framebuffers {
		api.DestroyFramebuffer(device, fb)
	}
}

// DestroyViews releases the image views. The swap chain itself is kept.
func (s *Swapchain) DestroyViews(api ResourceAPI, device vk.Device) {
	for _, view := range s.Views {
		api.DestroyImageView(device, view)
	}
	s.Views = nil
}

// Destroy releases the swap chain. Its views must already be gone.
func (s *Swapchain) Destroy(api ResourceAPI, device vk.Device) {
	if s == nil || s.Handle == vk.NullSwapchain {
		return
	}
	api.DestroySwapchain(device, s.Handle)
	s.Handle = vk.NullSwapchain
	s.Images = nil
}
