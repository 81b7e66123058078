package raytracer

import (
	"os"
	"path/filepath"

	vk "github.com/vulkan-go/vulkan"
)

const (
	VertexShader   = "vert.spv"
	FragmentShader = "frag.spv"
)

// LoadShaderFile reads SPIR-V bytecode from path. A missing file or a length that is
// not a whole number of 32-bit words yields an empty blob.
func LoadShaderFile(path string, log *Logger) []byte {
	code, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read shader", "path", path, "error", err)
		return nil
	}
	if len(code) == 0 || len(code)%4 != 0 {
		log.Error("short shader bytecode", "path", path, "size", len(code))
		return nil
	}
	log.Debug("loaded shader", "path", path, "size", len(code))
	return code
}

// LoadShaderPair reads the vertex and fragment stages from dir.
func LoadShaderPair(dir string, log *Logger) (vert, frag []byte) {
	return LoadShaderFile(filepath.Join(dir, VertexShader), log),
		LoadShaderFile(filepath.Join(dir, FragmentShader), log)
}

// CreateShaderModule wraps code in a shader module. Empty code fails with ErrEmptyShader.
func CreateShaderModule(api ResourceAPI, device vk.Device, code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return vk.NullShaderModule, creationError("create shader module", ErrEmptyShader)
	}
	module, ret := api.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	})
	if err := NewError(ret); err != nil {
		return vk.NullShaderModule, creationError("create shader module", err)
	}
	return module, nil
}
