package raytracer

import (
	vk "github.com/vulkan-go/vulkan"
)

// Pipeline is the triangle graphics pipeline and its empty layout.
type Pipeline struct {
	Layout vk.PipelineLayout
	Handle vk.Pipeline
}

// CreatePipeline builds the fixed triangle pipeline for pass at extent. The vertex
// stage generates its own positions, so there is no vertex input.
func CreatePipeline(api ResourceAPI, device vk.Device, pass vk.RenderPass, extent vk.Extent2D, vert, frag []byte, log *Logger) (*Pipeline, error) {
	vertModule, err := CreateShaderModule(api, device, vert)
	if err != nil {
		log.Error("failed to create vertex shader module", "error", err)
		return nil, err
	}
	defer api.DestroyShaderModule(device, vertModule)

	fragModule, err := CreateShaderModule(api, device, frag)
	if err != nil {
		log.Error("failed to create fragment shader module", "error", err)
		return nil, err
	}
	defer api.DestroyShaderModule(device, fragModule)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  safeString("main"),
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}},
		ScissorCount: 1,
		PScissors:    []vk.Rect2D{{Offset: vk.Offset2D{}, Extent: extent}},
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
		}},
	}

	layout, ret := api.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	})
	if err := NewError(ret); err != nil {
		log.Error("failed to create pipeline layout", "error", err)
		return nil, creationError("create pipeline layout", err)
	}

	handle, ret := api.CreateGraphicsPipeline(device, &vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &blend,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	})
	if err := NewError(ret); err != nil {
		log.Error("failed to create graphics pipeline", "error", err)
		api.DestroyPipelineLayout(device, layout)
		return nil, creationError("create graphics pipeline", err)
	}

	return &Pipeline{Layout: layout, Handle: handle}, nil
}

// Destroy releases the pipeline and then its layout.
func (p *Pipeline) Destroy(api ResourceAPI, device vk.Device) {
	if p == nil {
		return
	}
	if p.Handle != vk.NullPipeline {
		api.DestroyPipeline(device, p.Handle)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != nil {
		api.DestroyPipelineLayout(device, p.Layout)
		p.Layout = nil
	}
}
