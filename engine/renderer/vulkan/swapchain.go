package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/core"
	kmath "github.com/spaghettifunk/kiwi/engine/math"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	// Always ImageCount-1, and at least 1.
	MaxFramesInFlight uint32
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering, one per image.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width uint32, height uint32) (*VulkanSwapchain, error) {
	// Simply create a new one.
	return createSwapchain(context, width, height)
}

// SwapchainRecreate destroys vs and returns its replacement.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width uint32, height uint32) (*VulkanSwapchain, error) {
	vs.destroySwapchain(context)
	return createSwapchain(context, width, height)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

// AcquireNextImageIndex returns the index of the next presentable image.
// recreate is set when the swapchain is out of date and no image was acquired.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, bool, error) {
	var imageIndex uint32
	result := context.Driver.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, false, nil
	case vk.ErrorOutOfDate:
		return 0, true, nil
	default:
		return 0, false, resultError("vkAcquireNextImageKHR", result)
	}
}

// Present hands imageIndex back to the presentation engine once
// renderCompleteSemaphore signals. recreate is set when the swapchain no
// longer matches the surface.
func (vs *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, imageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
		PResults:           nil,
	}

	result := context.Driver.QueuePresent(presentQueue, &presentInfo)
	switch result {
	case vk.Success:
		return false, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return true, nil
	default:
		return false, resultError("vkQueuePresentKHR", result)
	}
}

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM with the sRGB non-linear colour
// space and falls back to the first reported format.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// ChoosePresentMode returns MAILBOX when preferred and available, FIFO
// otherwise. FIFO support is guaranteed.
func ChoosePresentMode(modes []vk.PresentMode, preferMailbox bool) vk.PresentMode {
	if preferMailbox {
		for _, mode := range modes {
			if mode == vk.PresentModeMailbox {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent when it is defined and clamps
// the requested size to the allowed range otherwise.
func ChooseExtent(capabilities *vk.SurfaceCapabilities, width uint32, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	min := capabilities.MinImageExtent
	max := capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  kmath.Clamp(width, min.Width, max.Width),
		Height: kmath.Clamp(height, min.Height, max.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, bounded by the
// maximum when the surface has one.
func ChooseImageCount(capabilities *vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// FramesInFlight is the number of frames the CPU may record ahead for a
// swapchain of imageCount images.
func FramesInFlight(imageCount uint32) uint32 {
	if imageCount <= 1 {
		return 1
	}
	return imageCount - 1
}

// queueSharing returns concurrent sharing over exactly the graphics and
// present families when they differ.
func queueSharing(graphicsIndex int32, presentIndex int32) (vk.SharingMode, []uint32) {
	if graphicsIndex != presentIndex {
		return vk.SharingModeConcurrent, []uint32{uint32(graphicsIndex), uint32(presentIndex)}
	}
	return vk.SharingModeExclusive, nil
}

func createSwapchain(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	device := context.Device
	if err := DeviceQuerySwapchainSupport(context, device.PhysicalDevice, &device.SwapchainSupport); err != nil {
		return nil, err
	}
	support := &device.SwapchainSupport
	if len(support.Formats) == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: ChooseSurfaceFormat(support.Formats),
		PresentMode: ChoosePresentMode(support.PresentModes, context.PreferMailbox),
		Extent:      ChooseExtent(&support.Capabilities, width, height),
	}
	imageCount := ChooseImageCount(&support.Capabilities)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     nil,
	}

	sharingMode, queueFamilyIndices := queueSharing(device.GraphicsQueueIndex, device.PresentQueueIndex)
	swapchainCreateInfo.ImageSharingMode = sharingMode
	swapchainCreateInfo.QueueFamilyIndexCount = uint32(len(queueFamilyIndices))
	swapchainCreateInfo.PQueueFamilyIndices = queueFamilyIndices

	if res := context.Driver.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchain.Handle); res != vk.Success {
		return nil, resultError("vkCreateSwapchainKHR", res)
	}

	// Start with a zero frame index.
	context.CurrentFrame = 0

	// Images
	if res := context.Driver.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	var err error
	if swapchain.Images, err = memory.Alloc[vk.Image](context.Arena, int(swapchain.ImageCount), memory.TagSwapchain); err != nil {
		return nil, err
	}
	if swapchain.Views, err = memory.Alloc[vk.ImageView](context.Arena, int(swapchain.ImageCount), memory.TagSwapchain); err != nil {
		return nil, err
	}
	if res := context.Driver.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	swapchain.MaxFramesInFlight = FramesInFlight(swapchain.ImageCount)

	// Views
	for i := 0; i < int(swapchain.ImageCount); i++ {
		view, err := ImageViewCreate(context, swapchain.ImageFormat.Format, swapchain.Images[i], vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view
	}

	// Depth resources
	if err := DeviceDetectDepthFormat(context); err != nil {
		device.DepthFormat = vk.FormatUndefined
		core.LogError(err.Error())
		return nil, err
	}

	depthAttachment, err := ImageCreate(
		context,
		vk.ImageType2d,
		swapchain.Extent.Width,
		swapchain.Extent.Height,
		device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	swapchain.DepthAttachment = depthAttachment

	core.LogInfo("Swapchain created successfully: %dx%d, %d images, %d frames in flight.",
		swapchain.Extent.Width, swapchain.Extent.Height, swapchain.ImageCount, swapchain.MaxFramesInFlight)

	return swapchain, nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	context.Driver.DeviceWaitIdle(context.Device.LogicalDevice)

	if vs.DepthAttachment != nil {
		vs.DepthAttachment.ImageDestroy(context)
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for i := range vs.Views {
		if vs.Views[i] != nil {
			context.Driver.DestroyImageView(context.Device.LogicalDevice, vs.Views[i], context.Allocator)
		}
	}

	if vs.Handle != nil {
		context.Driver.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = nil
	}

	if err := memory.Free(context.Arena, vs.Views, memory.TagSwapchain); err != nil {
		core.LogWarn("swapchain views: %s", err)
	}
	if err := memory.Free(context.Arena, vs.Images, memory.TagSwapchain); err != nil {
		core.LogWarn("swapchain images: %s", err)
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0
}
