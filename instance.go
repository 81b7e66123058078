package raytracer

import (
	"context"
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

var (
	AppVersion    = vk.MakeVersion(1, 0, 0)
	EngineVersion = vk.MakeVersion(1, 0, 0)
	APIVersion    = vk.MakeVersion(1, 0, 0)
)

const engineName = "voxel-raytracer"

// Instance is the vulkan instance and, with validation on, its debug report callback.
type Instance struct {
	Handle        vk.Instance
	DebugCallback vk.DebugReportCallback
	Layers        []string
}

// InstanceExtensions is the extension list enabled on the instance: what the window
// needs, plus debug report when validation is on.
func InstanceExtensions(cfg Config, windowExtensions []string) []string {
	exts := append([]string(nil), windowExtensions...)
	if cfg.EnableValidation {
		exts = append(exts, DebugReportExtension)
	}
	return exts
}

// CreateInstance creates the instance. Every requested layer and extension must exist.
func CreateInstance(api InstanceAPI, cfg Config, windowExtensions []string, log *Logger) (*Instance, error) {
	layerSet, err := InstanceLayerSet(api, cfg.Layers())
	if err == nil {
		err = layerSet.Check(ErrMissingLayers)
	}
	if err != nil {
		log.Error("validation layers unavailable", "layers", cfg.Layers(), "error", err)
		return nil, creationError("create instance", err)
	}

	extSet, err := InstanceExtensionSet(api, InstanceExtensions(cfg, windowExtensions))
	if err == nil {
		err = extSet.Check(ErrMissingExtensions)
	}
	if err != nil {
		log.Error("instance extensions unavailable", "error", err)
		return nil, creationError("create instance", err)
	}

	layers := layerSet.Enabled()
	extensions := extSet.Enabled()
	handle, ret := api.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeString(cfg.AppName),
			ApplicationVersion: uint32(AppVersion),
			PEngineName:        safeString(engineName),
			EngineVersion:      uint32(EngineVersion),
			ApiVersion:         uint32(APIVersion),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	})
	if err := NewError(ret); err != nil {
		log.Error("failed to create instance", "error", err)
		return nil, creationError("create instance", err)
	}
	log.Info("created instance", "extensions", len(extensions), "layers", len(layers))

	return &Instance{Handle: handle, Layers: cfg.Layers()}, nil
}

// debugLog receives validation messages. vulkan calls back on its own threads.
var debugLog atomic.Pointer[Logger]

// EnableDebugReport registers a callback forwarding validation messages to log.
func (i *Instance) EnableDebugReport(api InstanceAPI, log *Logger) error {
	debugLog.Store(log)

	flags := vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit
	if log.Enabled(context.Background(), LevelDebug) {
		flags |= vk.DebugReportInformationBit | vk.DebugReportDebugBit
	}
	callback, ret := api.CreateDebugReportCallback(i.Handle, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(flags),
		PfnCallback: debugReport,
	})
	if err := NewError(ret); err != nil {
		log.Error("failed to create debug report callback", "error", err)
		return creationError("create debug report callback", err)
	}
	i.DebugCallback = callback
	log.Debug("debug report callback enabled")
	return nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	log := debugLog.Load()
	if log == nil {
		return vk.Bool32(vk.False)
	}
	args := []any{"layer", pLayerPrefix, "code", messageCode}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Error(pMessage, args...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Warn(pMessage, args...)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Warn(pMessage, append(args, "performance", true)...)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		log.Debug(pMessage, args...)
	default:
		log.Trace(pMessage, args...)
	}
	return vk.Bool32(vk.False)
}

// Destroy releases the callback and the instance. The surface and device must be gone.
func (i *Instance) Destroy(api InstanceAPI) {
	if i == nil || i.Handle == nil {
		return
	}
	if i.DebugCallback != vk.NullDebugReportCallback {
		api.DestroyDebugReportCallback(i.Handle, i.DebugCallback)
		i.DebugCallback = vk.NullDebugReportCallback
	}
	api.DestroyInstance(i.Handle)
	i.Handle = nil
}
