package raytracer

import vk "github.com/vulkan-go/vulkan"

// InstanceAPI covers instance-level entrypoints.
type InstanceAPI interface {
	InstanceLayers() ([]string, vk.Result)
	InstanceExtensions() ([]string, vk.Result)
	CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result)
	DestroyInstance(instance vk.Instance)
	CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result)
	DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback)
	DestroySurface(instance vk.Instance, surface vk.Surface)
}

// CapabilityAPI covers the physical device and surface queries used to pick a GPU.
// Returned structs are already dereferenced.
type CapabilityAPI interface {
	PhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result)
	PhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties
	QueueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties
	SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result)
	SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	SurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result)
	DeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result)
}

// ResourceAPI creates and destroys device-owned objects.
type ResourceAPI interface {
	CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result)
	DestroyDevice(device vk.Device)
	DeviceQueue(device vk.Device, family uint32) vk.Queue

	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(device vk.Device, view vk.ImageView)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result)
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)

	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result)
	DestroyRenderPass(device vk.Device, pass vk.RenderPass)
	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)

	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result)
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result)
	CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result)
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore)
	CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result)
	DestroyFence(device vk.Device, fence vk.Fence)
}

// CommandAPI is the per-frame synchronization, recording and submission surface.
type CommandAPI interface {
	WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) vk.Result
	ResetFence(device vk.Device, fence vk.Fence) vk.Result
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result)

	ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result
	BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdEndRenderPass(cmd vk.CommandBuffer)
	EndCommandBuffer(cmd vk.CommandBuffer) vk.Result

	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result
	DeviceWaitIdle(device vk.Device) vk.Result
}

// Driver is the full native surface the renderer runs on.
type Driver interface {
	InstanceAPI
	CapabilityAPI
	ResourceAPI
	CommandAPI
}
