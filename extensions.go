package raytracer

import (
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// NameSet pairs requested extension or layer names with what the platform offers.
type NameSet struct {
	Required  []string
	Available []string
}

// Missing lists the required names the platform does not offer.
func (n NameSet) Missing() []string {
	_, missing := checkExisting(n.Available, n.Required)
	return missing
}

// Enabled returns the required names null-terminated for a create info.
func (n NameSet) Enabled() []string {
	seen := make(map[string]struct{}, len(n.Required))
	out := make([]string, 0, len(n.Required))
	for _, name := range n.Required {
		key := trimNull(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, safeString(key))
	}
	return out
}

// Check fails with sentinel when any required name is missing.
func (n NameSet) Check(sentinel error) error {
	if missing := n.Missing(); len(missing) > 0 {
		return errors.Wrap(sentinel, strings.Join(missing, ", "))
	}
	return nil
}

// DeviceExtensionSet queries the extensions gpu offers against required.
func DeviceExtensionSet(api CapabilityAPI, gpu vk.PhysicalDevice, required []string) (NameSet, error) {
	available, ret := api.DeviceExtensions(gpu)
	if err := NewError(ret); err != nil {
		return NameSet{Required: required}, errors.Wrap(err, "enumerate device extensions")
	}
	return NameSet{Required: required, Available: available}, nil
}

// InstanceLayerSet queries the instance layers against required.
func InstanceLayerSet(api InstanceAPI, required []string) (NameSet, error) {
	available, ret := api.InstanceLayers()
	if err := NewError(ret); err != nil {
		return NameSet{Required: required}, errors.Wrap(err, "enumerate instance layers")
	}
	return NameSet{Required: required, Available: available}, nil
}

// InstanceExtensionSet queries the instance extensions against required.
func InstanceExtensionSet(api InstanceAPI, required []string) (NameSet, error) {
	available, ret := api.InstanceExtensions()
	if err := NewError(ret); err != nil {
		return NameSet{Required: required}, errors.Wrap(err, "enumerate instance extensions")
	}
	return NameSet{Required: required, Available: available}, nil
}
