package raytracer

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

type fenceState int

const (
	fenceUnsignaled fenceState = iota
	fenceSignaled
	// fencePending is submitted work not yet observed complete.
	fencePending
)

type fakeGPU struct {
	name        string
	deviceType  vk.PhysicalDeviceType
	families    []vk.QueueFamilyProperties
	present     map[uint32]bool
	extensions  []string
	caps        vk.SurfaceCapabilities
	formats     []vk.SurfaceFormat
	modes       []vk.PresentMode
	handle      vk.PhysicalDevice
	supportFail bool
}

type failure struct {
	// at is the 1-based call that fails, 0 fails every call.
	at  int
	ret vk.Result
}

// fakeDriver scripts a device for the renderer. Handles are distinct Go pointers.
type fakeDriver struct {
	gpus               []*fakeGPU
	layers             []string
	instanceExtensions []string

	failures map[string]failure
	counts   map[string]int

	// calls is every frame-level call in order.
	calls      []string
	live       map[unsafe.Pointer]string
	created    []string
	destroyed  []string
	violations []string

	fences     map[vk.Fence]fenceState
	cmdFence   map[vk.CommandBuffer]vk.Fence
	observed   map[vk.Fence]bool
	maxPending int
	// hang keeps pending fences pending, so waits time out.
	hang bool

	images         int
	nextImage      uint32
	acquireResults []vk.Result
	presentResults []vk.Result
	presented      []uint32

	instanceInfo  *vk.InstanceCreateInfo
	deviceInfo    *vk.DeviceCreateInfo
	swapchainInfo *vk.SwapchainCreateInfo
	submits       []vk.SubmitInfo
	submitFences  []vk.Fence
	renderPasses  []vk.RenderPassBeginInfo
	draws         int
	waitTimeouts  []uint64
}

var _ Driver = (*fakeDriver)(nil)

func defaultCaps() vk.SurfaceCapabilities {
	return vk.SurfaceCapabilities{
		MinImageCount:           2,
		MaxImageCount:           8,
		CurrentExtent:           vk.Extent2D{Width: 800, Height: 450},
		MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
		MaxImageArrayLayers:     1,
		SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
		CurrentTransform:        vk.SurfaceTransformIdentityBit,
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
	}
}

func graphicsFamily() vk.QueueFamilyProperties {
	return vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit), QueueCount: 1}
}

func computeFamily() vk.QueueFamilyProperties {
	return vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(vk.QueueComputeBit), QueueCount: 1}
}

func newFakeGPU(name string, deviceType vk.PhysicalDeviceType) *fakeGPU {
	return &fakeGPU{
		name:       name,
		deviceType: deviceType,
		families:   []vk.QueueFamilyProperties{graphicsFamily()},
		present:    map[uint32]bool{0: true},
		extensions: []string{SwapchainExtension},
		caps:       defaultCaps(),
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		modes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
	}
}

func newFakeDriver(gpus ...*fakeGPU) *fakeDriver {
	if len(gpus) == 0 {
		gpus = []*fakeGPU{newFakeGPU("Fake Discrete", vk.PhysicalDeviceTypeDiscreteGpu)}
	}
	d := &fakeDriver{
		gpus:               gpus,
		layers:             []string{KhronosValidation + "\x00"},
		instanceExtensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface", DebugReportExtension},
		failures:           map[string]failure{},
		counts:             map[string]int{},
		live:               map[unsafe.Pointer]string{},
		fences:             map[vk.Fence]fenceState{},
		cmdFence:           map[vk.CommandBuffer]vk.Fence{},
		observed:           map[vk.Fence]bool{},
	}
	for _, gpu := range gpus {
		gpu.handle = vk.PhysicalDevice(newHandle())
	}
	return d
}

// handles pins every fake allocation. Vulkan handle types are not-in-heap
// pointers, so a handle alone does not keep its allocation from being reused.
var handles []*uint64

func newHandle() unsafe.Pointer {
	h := new(uint64)
	handles = append(handles, h)
	return unsafe.Pointer(h)
}

func (d *fakeDriver) failOn(op string, at int, ret vk.Result) {
	d.failures[op] = failure{at: at, ret: ret}
}

func (d *fakeDriver) result(op string) vk.Result {
	d.counts[op]++
	if f, ok := d.failures[op]; ok && (f.at == 0 || f.at == d.counts[op]) {
		return f.ret
	}
	return vk.Success
}

func (d *fakeDriver) create(kind string) unsafe.Pointer {
	h := newHandle()
	d.live[h] = kind
	d.created = append(d.created, kind)
	return h
}

func (d *fakeDriver) destroy(kind string, h unsafe.Pointer) {
	if h == nil {
		return
	}
	got, ok := d.live[h]
	if !ok {
		d.violations = append(d.violations, fmt.Sprintf("destroy of unknown or released %s", kind))
		return
	}
	if got != kind {
		d.violations = append(d.violations, fmt.Sprintf("destroy %s handle as %s", got, kind))
	}
	delete(d.live, h)
	d.destroyed = append(d.destroyed, kind)
	d.calls = append(d.calls, "Destroy "+kind)
}

func (d *fakeDriver) liveCount() int { return len(d.live) }

func (d *fakeDriver) gpu(h vk.PhysicalDevice) *fakeGPU {
	for _, gpu := range d.gpus {
		if gpu.handle == h {
			return gpu
		}
	}
	return nil
}

func (d *fakeDriver) pending() int {
	n := 0
	for _, state := range d.fences {
		if state == fencePending {
			n++
		}
	}
	return n
}

func (d *fakeDriver) InstanceLayers() ([]string, vk.Result) {
	return d.layers, d.result("InstanceLayers")
}

func (d *fakeDriver) InstanceExtensions() ([]string, vk.Result) {
	return d.instanceExtensions, d.result("InstanceExtensions")
}

func (d *fakeDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	d.instanceInfo = info
	if ret := d.result("CreateInstance"); ret != vk.Success {
		return nil, ret
	}
	return vk.Instance(d.create("instance")), vk.Success
}

func (d *fakeDriver) DestroyInstance(instance vk.Instance) {
	d.destroy("instance", unsafe.Pointer(instance))
}

func (d *fakeDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo) (vk.DebugReportCallback, vk.Result) {
	if ret := d.result("CreateDebugReportCallback"); ret != vk.Success {
		return vk.NullDebugReportCallback, ret
	}
	return vk.DebugReportCallback(d.create("debug callback")), vk.Success
}

func (d *fakeDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback) {
	d.destroy("debug callback", unsafe.Pointer(callback))
}

func (d *fakeDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	d.destroy("surface", unsafe.Pointer(surface))
}

func (d *fakeDriver) PhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	if ret := d.result("PhysicalDevices"); ret != vk.Success {
		return nil, ret
	}
	out := make([]vk.PhysicalDevice, 0, len(d.gpus))
	for _, gpu := range d.gpus {
		out = append(out, gpu.handle)
	}
	return out, vk.Success
}

func (d *fakeDriver) PhysicalDeviceProperties(h vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	if gpu := d.gpu(h); gpu != nil {
		copy(props.DeviceName[:], gpu.name)
		props.DeviceType = gpu.deviceType
	}
	return props
}

func (d *fakeDriver) QueueFamilies(h vk.PhysicalDevice) []vk.QueueFamilyProperties {
	return d.gpu(h).families
}

func (d *fakeDriver) SurfaceSupport(h vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result) {
	gpu := d.gpu(h)
	if gpu.supportFail {
		return false, vk.ErrorSurfaceLost
	}
	return gpu.present[family], vk.Success
}

func (d *fakeDriver) SurfaceCapabilities(h vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	return d.gpu(h).caps, d.result("SurfaceCapabilities")
}

func (d *fakeDriver) SurfaceFormats(h vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	return d.gpu(h).formats, vk.Success
}

func (d *fakeDriver) SurfacePresentModes(h vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	return d.gpu(h).modes, vk.Success
}

func (d *fakeDriver) DeviceExtensions(h vk.PhysicalDevice) ([]string, vk.Result) {
	return d.gpu(h).extensions, vk.Success
}

func (d *fakeDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	d.deviceInfo = info
	if ret := d.result("CreateDevice"); ret != vk.Success {
		return nil, ret
	}
	return vk.Device(d.create("device")), vk.Success
}

func (d *fakeDriver) DestroyDevice(device vk.Device) {
	d.destroy("device", unsafe.Pointer(device))
}

func (d *fakeDriver) DeviceQueue(device vk.Device, family uint32) vk.Queue {
	return vk.Queue(newHandle())
}

func (d *fakeDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	d.calls = append(d.calls, "DeviceWaitIdle")
	for fence, state := range d.fences {
		if state == fencePending {
			d.fences[fence] = fenceSignaled
		}
	}
	return d.result("DeviceWaitIdle")
}

func (d *fakeDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	d.swapchainInfo = info
	if ret := d.result("CreateSwapchain"); ret != vk.Success {
		return vk.NullSwapchain, ret
	}
	d.images = int(info.MinImageCount)
	return vk.Swapchain(d.create("swapchain")), vk.Success
}

func (d *fakeDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	d.destroy("swapchain", unsafe.Pointer(swapchain))
}

func (d *fakeDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	images := make([]vk.Image, d.images)
	for i := range images {
		images[i] = vk.Image(newHandle())
	}
	return images, d.result("SwapchainImages")
}

func (d *fakeDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	if ret := d.result("CreateImageView"); ret != vk.Success {
		return nil, ret
	}
	return vk.ImageView(d.create("image view")), vk.Success
}

func (d *fakeDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	d.destroy("image view", unsafe.Pointer(view))
}

func (d *fakeDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	if ret := d.result("CreateFramebuffer"); ret != vk.Success {
		return nil, ret
	}
	return vk.Framebuffer(d.create("framebuffer")), vk.Success
}

func (d *fakeDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	d.destroy("framebuffer", unsafe.Pointer(framebuffer))
}

func (d *fakeDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	if ret := d.result("CreateRenderPass"); ret != vk.Success {
		return vk.NullRenderPass, ret
	}
	return vk.RenderPass(d.create("render pass")), vk.Success
}

func (d *fakeDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	d.destroy("render pass", unsafe.Pointer(pass))
}

func (d *fakeDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	if ret := d.result("CreateShaderModule"); ret != vk.Success {
		return vk.NullShaderModule, ret
	}
	return vk.ShaderModule(d.create("shader module")), vk.Success
}

func (d *fakeDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	d.destroy("shader module", unsafe.Pointer(module))
}

func (d *fakeDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	if ret := d.result("CreatePipelineLayout"); ret != vk.Success {
		return nil, ret
	}
	return vk.PipelineLayout(d.create("pipeline layout")), vk.Success
}

func (d *fakeDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	d.destroy("pipeline layout", unsafe.Pointer(layout))
}

func (d *fakeDriver) CreateGraphicsPipeline(device vk.Device, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, vk.Result) {
	if ret := d.result("CreateGraphicsPipeline"); ret != vk.Success {
		return vk.NullPipeline, ret
	}
	return vk.Pipeline(d.create("pipeline")), vk.Success
}

func (d *fakeDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	d.destroy("pipeline", unsafe.Pointer(pipeline))
}

func (d *fakeDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	if ret := d.result("CreateCommandPool"); ret != vk.Success {
		return nil, ret
	}
	return vk.CommandPool(d.create("command pool")), vk.Success
}

func (d *fakeDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	d.destroy("command pool", unsafe.Pointer(pool))
}

func (d *fakeDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	if ret := d.result("AllocateCommandBuffers"); ret != vk.Success {
		return nil, ret
	}
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(newHandle())
	}
	return buffers, vk.Success
}

func (d *fakeDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	if ret := d.result("CreateSemaphore"); ret != vk.Success {
		return vk.NullSemaphore, ret
	}
	return vk.Semaphore(d.create("semaphore")), vk.Success
}

func (d *fakeDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	d.destroy("semaphore", unsafe.Pointer(semaphore))
}

func (d *fakeDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	if ret := d.result("CreateFence"); ret != vk.Success {
		return nil, ret
	}
	fence := vk.Fence(d.create("fence"))
	d.fences[fence] = fenceUnsignaled
	if info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0 {
		d.fences[fence] = fenceSignaled
	}
	return fence, vk.Success
}

func (d *fakeDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	if d.fences[fence] == fencePending {
		d.violations = append(d.violations, "fence destroyed while pending")
	}
	delete(d.fences, fence)
	d.destroy("fence", unsafe.Pointer(fence))
}

func (d *fakeDriver) WaitForFence(device vk.Device, fence vk.Fence, timeout uint64) vk.Result {
	d.calls = append(d.calls, "WaitForFence")
	d.waitTimeouts = append(d.waitTimeouts, timeout)
	if ret := d.result("WaitForFence"); ret != vk.Success {
		return ret
	}
	switch d.fences[fence] {
	case fenceSignaled:
	case fencePending:
		if d.hang {
			return vk.Timeout
		}
		d.fences[fence] = fenceSignaled
	default:
		return vk.Timeout
	}
	d.observed[fence] = true
	return vk.Success
}

func (d *fakeDriver) ResetFence(device vk.Device, fence vk.Fence) vk.Result {
	d.calls = append(d.calls, "ResetFence")
	if !d.observed[fence] {
		d.violations = append(d.violations, "fence reset before it was observed signaled")
	}
	d.observed[fence] = false
	d.fences[fence] = fenceUnsignaled
	return d.result("ResetFence")
}

func (d *fakeDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result) {
	d.calls = append(d.calls, "AcquireNextImage")
	ret := vk.Success
	if len(d.acquireResults) > 0 {
		ret, d.acquireResults = d.acquireResults[0], d.acquireResults[1:]
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		return 0, ret
	}
	index := d.nextImage
	if d.images > 0 {
		d.nextImage = (d.nextImage + 1) % uint32(d.images)
	}
	return index, ret
}

func (d *fakeDriver) ResetCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	d.calls = append(d.calls, "ResetCommandBuffer")
	if fence, ok := d.cmdFence[cmd]; ok && d.fences[fence] == fencePending {
		d.violations = append(d.violations, "command buffer reset while its submission is pending")
	}
	return d.result("ResetCommandBuffer")
}

func (d *fakeDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	d.calls = append(d.calls, "BeginCommandBuffer")
	return d.result("BeginCommandBuffer")
}

func (d *fakeDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	d.calls = append(d.calls, "CmdBeginRenderPass")
	d.renderPasses = append(d.renderPasses, *info)
}

func (d *fakeDriver) CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.calls = append(d.calls, "CmdBindPipeline")
}

func (d *fakeDriver) CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.calls = append(d.calls, "CmdDraw")
	if vertexCount == 3 && instanceCount == 1 && firstVertex == 0 && firstInstance == 0 {
		d.draws++
	}
}

func (d *fakeDriver) CmdEndRenderPass(cmd vk.CommandBuffer) {
	d.calls = append(d.calls, "CmdEndRenderPass")
}

func (d *fakeDriver) EndCommandBuffer(cmd vk.CommandBuffer) vk.Result {
	d.calls = append(d.calls, "EndCommandBuffer")
	return d.result("EndCommandBuffer")
}

func (d *fakeDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	d.calls = append(d.calls, "QueueSubmit")
	if ret := d.result("QueueSubmit"); ret != vk.Success {
		return ret
	}
	if d.fences[fence] != fenceUnsignaled {
		d.violations = append(d.violations, "submit with a fence that is not unsignaled")
	}
	d.fences[fence] = fencePending
	for _, submit := range submits {
		for _, cmd := range submit.PCommandBuffers {
			d.cmdFence[cmd] = fence
		}
	}
	d.submits = append(d.submits, submits...)
	d.submitFences = append(d.submitFences, fence)
	if n := d.pending(); n > d.maxPending {
		d.maxPending = n
	}
	return vk.Success
}

func (d *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	d.calls = append(d.calls, "QueuePresent")
	d.presented = append(d.presented, info.PImageIndices...)
	if len(d.presentResults) > 0 {
		var ret vk.Result
		ret, d.presentResults = d.presentResults[0], d.presentResults[1:]
		return ret
	}
	return vk.Success
}

// fakeWindow closes after closeAfter polls, never when closeAfter is 0.
type fakeWindow struct {
	width, height int
	closeAfter    int
	polls         int
	surfaceErr    error
	driver        *fakeDriver
}

func newFakeWindow(d *fakeDriver, closeAfter int) *fakeWindow {
	return &fakeWindow{width: 800, height: 450, closeAfter: closeAfter, driver: d}
}

func (w *fakeWindow) RequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
}

func (w *fakeWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if w.surfaceErr != nil {
		return vk.NullSurface, w.surfaceErr
	}
	return vk.Surface(w.driver.create("surface")), nil
}

func (w *fakeWindow) FramebufferSize() (int, int) { return w.width, w.height }

func (w *fakeWindow) ShouldClose() bool {
	return w.closeAfter > 0 && w.polls >= w.closeAfter
}

func (w *fakeWindow) PollEvents() { w.polls++ }
