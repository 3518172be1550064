package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/memory"
)

type VulkanContext struct {
	Driver Driver
	// Host-side arrays owned by the backend are accounted here.
	Arena *memory.Arena

	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// a new swapchain should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created. Set to FramebufferSizeGeneration
	// when updated.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass
	PreferMailbox  bool

	// One per swapchain image.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	Sync *FrameSync

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool
}

// RecreationPending reports whether the swapchain is older than the last
// resize request.
func (vc *VulkanContext) RecreationPending() bool {
	return vc.FramebufferSizeGeneration != vc.FramebufferSizeLastGeneration
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	return 0, ErrNoMemoryType
}
