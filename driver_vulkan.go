package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// VulkanDriver forwards every call to the loaded vulkan library.
// vk.Init must have succeeded before any method is used.
type VulkanDriver struct{}

var _ Driver = VulkanDriver{}

func (VulkanDriver) InstanceLayers() (names []string, ret vk.Result) {
	var count uint32
	if ret = vk.EnumerateInstanceLayerProperties(&count, nil); isError(ret) {
		return nil, ret
	}
	list := make([]vk.LayerProperties, count)
	if ret = vk.EnumerateInstanceLayerProperties(&count, list); isError(ret) {
		return nil, ret
	}
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, vk.Success
}

func (VulkanDriver) InstanceExtensions() (names []string, ret vk.Result) {
	var count uint32
	if ret = vk.EnumerateInstanceExtensionProperties("", &count, nil); isError(ret) {
		return nil, ret
	}
	list := make([]vk.ExtensionProperties, count)
	if ret = vk.EnumerateInstanceExtensionProperties("", &count, list); isError(ret) {
		return nil, ret
	}
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, vk.Success
}

func (VulkanDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	var instance vk.Instance
	ret := vk.CreateInstance(info, nil, &instance)
	if ret == vk.Success {
		vk.InitInstance(instance)
	}
	return instance, ret
}

func (VulkanDriver) DestroyInstance(instance vk.Instance) {
	vk.DestroyInstance(instance, nil)
}

func (VulkanDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result) {
	var callback vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(instance, info, nil, &callback)
	return callback, ret
}

func (VulkanDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback) {
	vk.DestroyDebugReportCallback(instance, callback, nil)
}

func (VulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (VulkanDriver) PhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	return gpus[:count], ret
}

func (VulkanDriver) PhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	return props
}

func (VulkanDriver) QueueFamilies(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}

func (VulkanDriver) SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
	return supported.B(), ret
}

func (VulkanDriver) SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, ret
}

func (VulkanDriver) SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil)
	if isError(ret) || count == 0 {
		return nil, ret
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return formats, ret
}

func (VulkanDriver) SurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil)
	if isError(ret) || count == 0 {
		return nil, ret
	}
	modes := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	return modes, ret
}

func (VulkanDriver) DeviceExtensions(gpu vk.PhysicalDevice) (names []string, ret vk.Result) {
	var count uint32
	if ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil); isError(ret) {
		return nil, ret
	}
	list := make([]vk.ExtensionProperties, count)
	if ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list); isError(ret) {
		return nil, ret
	}
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, vk.Success
}

func (VulkanDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	var device vk.Device
	ret := vk.CreateDevice(gpu, info, nil, &device)
	return device, ret
}

func (VulkanDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (VulkanDriver) DeviceQueue(device vk.Device, family uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)
	return queue
}

func (VulkanDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.DeviceWaitIdle(device)
}

func (VulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(device, info, nil, &swapchain)
	return swapchain, ret
}

func (VulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (VulkanDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	ret := vk.GetSwapchainImages(device, swapchain, &count, nil)
	if isError(ret) {
		return nil, ret
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(device, swapchain, &count, images)
	return images[:count], ret
}

func (VulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, info, nil, &view)
	return view, ret
}

func (VulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (VulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	var framebuffer vk.Framebuffer
	ret := vk.CreateFramebuffer(device, info, nil, &framebuffer)
	return framebuffer, ret
}

func (VulkanDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (VulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(device, info, nil, &pass)
	return pass, ret
}

func (VulkanDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	vk.DestroyRenderPass(device, pass, nil)
}

func (VulkanDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, info, nil, &module)
	return module, ret
}

func (VulkanDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (VulkanDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, info, nil, &layout)
	return layout, ret
}

func (VulkanDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (VulkanDriver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines)
	return pipelines[0], ret
}

func (VulkanDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}

func (VulkanDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, info, nil, &pool)
	return pool, ret
}

func (VulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (VulkanDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	ret := vk.AllocateCommandBuffers(device, info, buffers)
	return buffers, ret
}

func (VulkanDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	var semaphore vk.Semaphore
	ret := vk.CreateSemaphore(device, info, nil, &semaphore)
	return semaphore, ret
}

func (VulkanDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(device, semaphore, nil)
}

func (VulkanDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	var fence vk.Fence
	ret := vk.CreateFence(device, info, nil, &fence)
	return fence, ret
}

func (VulkanDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (VulkanDriver) WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, timeout)
}

func (VulkanDriver) ResetFence(device vk.Device, fence vk.Fence) vk.Result {
	return vk.ResetFences(device, 1, []vk.Fence{fence})
}

func (VulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result) {
	var index uint32
	ret := vk.AcquireNextImage(device, swapchain, timeout, signal, vk.Fence(vk.NullHandle), &index)
	return index, ret
}

func (VulkanDriver) ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	return vk.ResetCommandBuffer(cmd, 0)
}

func (VulkanDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(cmd, info)
}

func (VulkanDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(cmd, info, contents)
}

func (VulkanDriver) CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, bindPoint, pipeline)
}

func (VulkanDriver) CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cmd, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (VulkanDriver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	vk.CmdEndRenderPass(cmd)
}

func (VulkanDriver) EndCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(cmd)
}

func (VulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (VulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}
