package raytracer

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const (
	// IneligibleScore marks a device that cannot drive the renderer at all.
	IneligibleScore = -1
	discreteBonus   = 100
)

// SurfaceSupport is the capability snapshot of one device against one surface.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Adequate is true when the surface offers at least one format and one present mode.
func (s SurfaceSupport) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

// QuerySurfaceSupport captures capabilities, formats and present modes of gpu for surface.
func QuerySurfaceSupport(api CapabilityAPI, gpu vk.PhysicalDevice, surface vk.Surface) (SurfaceSupport, error) {
	var support SurfaceSupport
	var ret vk.Result

	support.Capabilities, ret = api.SurfaceCapabilities(gpu, surface)
	if err := NewError(ret); err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}
	support.Formats, ret = api.SurfaceFormats(gpu, surface)
	if err := NewError(ret); err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}
	support.PresentModes, ret = api.SurfacePresentModes(gpu, surface)
	if err := NewError(ret); err != nil {
		return support, errors.Wrap(err, "query surface present modes")
	}
	return support, nil
}

// Candidate is a scored physical device with everything learned while scoring it.
type Candidate struct {
	GPU        vk.PhysicalDevice
	Name       string
	Type       vk.PhysicalDeviceType
	Score      int
	Indices    QueueFamilyIndices
	Support    SurfaceSupport
	Properties vk.PhysicalDeviceProperties
}

// Eligible is true when the candidate scored above IneligibleScore.
func (c Candidate) Eligible() bool {
	return c.Score > IneligibleScore
}

// Prober enumerates and scores physical devices against one presentation surface.
type Prober struct {
	api        CapabilityAPI
	surface    vk.Surface
	extensions []string
	log        *Logger
}

// NewProber builds a prober requiring extensions on every device it accepts.
func NewProber(api CapabilityAPI, surface vk.Surface, extensions []string, log *Logger) *Prober {
	return &Prober{
		api:        api,
		surface:    surface,
		extensions: extensions,
		log:        log,
	}
}

// ScoreDevice rates gpu. Devices with incomplete queue families, missing extensions
// or an inadequate surface get IneligibleScore; otherwise the score is 0 plus a bonus
// for discrete GPUs.
func (p *Prober) ScoreDevice(gpu vk.PhysicalDevice) Candidate {
	props := p.api.PhysicalDeviceProperties(gpu)
	c := Candidate{
		GPU:        gpu,
		Name:       vk.ToString(props.DeviceName[:]),
		Type:       props.DeviceType,
		Score:      IneligibleScore,
		Properties: props,
	}

	c.Indices = FindQueueFamilies(p.api, gpu, p.surface, p.log)
	if !c.Indices.IsComplete() {
		p.log.Debug("device rejected", "device", c.Name, "reason", ErrIncompleteQueueFamilies)
		return c
	}

	exts, err := DeviceExtensionSet(p.api, gpu, p.extensions)
	if err == nil {
		err = exts.Check(ErrMissingExtensions)
	}
	if err != nil {
		p.log.Debug("device rejected", "device", c.Name, "reason", err)
		return c
	}

	support, err := QuerySurfaceSupport(p.api, gpu, p.surface)
	if err != nil {
		p.log.Debug("device rejected", "device", c.Name, "reason", err)
		return c
	}
	c.Support = support
	if !support.Adequate() {
		p.log.Debug("device rejected", "device", c.Name, "reason", ErrInadequateSurface)
		return c
	}

	c.Score = 0
	if c.Type == vk.PhysicalDeviceTypeDiscreteGpu {
		c.Score += discreteBonus
	}
	p.log.Debug("device scored", "device", c.Name, "score", c.Score)
	return c
}

// SelectDevice returns the highest scoring device of instance. Ties keep the device
// enumerated first.
func (p *Prober) SelectDevice(instance vk.Instance) (Candidate, error) {
	gpus, ret := p.api.PhysicalDevices(instance)
	if err := NewError(ret); err != nil {
		return Candidate{}, creationError("enumerate physical devices", err)
	}
	if len(gpus) == 0 {
		return Candidate{}, negotiationError("select device", ErrNoDevices)
	}

	best := Candidate{Score: IneligibleScore}
	for _, gpu := range gpus {
		c := p.ScoreDevice(gpu)
		if c.Score > best.Score {
			best = c
		}
	}
	if !best.Eligible() {
		return Candidate{}, negotiationError("select device", ErrNoSuitableDevice)
	}

	p.log.Info("selected physical device",
		"device", best.Name,
		"score", best.Score,
		"graphics_family", *best.Indices.Graphics,
		"present_family", *best.Indices.Present)
	return best, nil
}

// DeviceConfig lists what the logical device enables.
type DeviceConfig struct {
	Extensions []string
	Layers     []string
}

// GraphicsDevice is the selected physical device, its logical device and queues.
type GraphicsDevice struct {
	Physical      vk.PhysicalDevice
	Handle        vk.Device
	Name          string
	Indices       QueueFamilyIndices
	Support       SurfaceSupport
	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
}

// QueueCreateInfos requests one queue for every distinct family in indices.
func QueueCreateInfos(indices QueueFamilyIndices) []vk.DeviceQueueCreateInfo {
	var infos []vk.DeviceQueueCreateInfo
	for _, family := range indices.Unique() {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	return infos
}

// CreateLogicalDevice creates the logical device for c and fetches its graphics and
// present queues.
func CreateLogicalDevice(api ResourceAPI, c Candidate, cfg DeviceConfig, log *Logger) (*GraphicsDevice, error) {
	if !c.Indices.IsComplete() {
		return nil, negotiationError("create logical device", ErrIncompleteQueueFamilies)
	}

	queueInfos := QueueCreateInfos(c.Indices)
	extensions := safeStrings(cfg.Extensions)
	layers := safeStrings(cfg.Layers)

	device, ret := api.CreateDevice(c.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	})
	if err := NewError(ret); err != nil {
		log.Error("failed to create logical device", "device", c.Name, "error", err)
		return nil, creationError("create logical device", err)
	}

	gd := &GraphicsDevice{
		Physical: c.GPU,
		Handle:   device,
		Name:     c.Name,
		Indices:  c.Indices,
		Support:  c.Support,
	}
	gd.GraphicsQueue = api.DeviceQueue(device, *c.Indices.Graphics)
	gd.PresentQueue = api.DeviceQueue(device, *c.Indices.Present)

	log.Info("created logical device", "device", c.Name, "queues", len(queueInfos))
	return gd, nil
}

// Destroy releases the logical device. Every object created from it must be gone.
func (d *GraphicsDevice) Destroy(api ResourceAPI) {
	if d == nil || d.Handle == nil {
		return
	}
	api.DestroyDevice(d.Handle)
	d.Handle = nil
}
