package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var ErrNoInstanceProcAddr = errors.New("vkGetInstanceProcAddr is not available")

// vulkanDriver forwards to the loader through goki/vulkan and dereferences the
// C-backed output structs before handing them back.
type vulkanDriver struct{}

// LoadDriver initializes the Vulkan loader from the platform's
// vkGetInstanceProcAddr.
func LoadDriver(procAddr unsafe.Pointer) (Driver, error) {
	if procAddr == nil {
		return nil, ErrNoInstanceProcAddr
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vulkan: %w", err)
	}
	return &vulkanDriver{}, nil
}

func (vulkanDriver) EnumerateInstanceLayerProperties(count *uint32, properties []vk.LayerProperties) vk.Result {
	res := vk.EnumerateInstanceLayerProperties(count, properties)
	for i := range properties {
		properties[i].Deref()
	}
	return res
}

func (vulkanDriver) CreateInstance(info *vk.InstanceCreateInfo, allocator *vk.AllocationCallbacks, instance *vk.Instance) vk.Result {
	res := vk.CreateInstance(info, allocator, instance)
	if res != vk.Success {
		return res
	}
	if err := vk.InitInstance(*instance); err != nil {
		return vk.ErrorInitializationFailed
	}
	return res
}

func (vulkanDriver) DestroyInstance(instance vk.Instance, allocator *vk.AllocationCallbacks) {
	vk.DestroyInstance(instance, allocator)
}

func (vulkanDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo, allocator *vk.AllocationCallbacks, callback *vk.DebugReportCallback) vk.Result {
	return vk.CreateDebugReportCallback(instance, info, allocator, callback)
}

func (vulkanDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback, allocator *vk.AllocationCallbacks) {
	vk.DestroyDebugReportCallback(instance, callback, allocator)
}

func (vulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface, allocator *vk.AllocationCallbacks) {
	vk.DestroySurface(instance, surface, allocator)
}

func (vulkanDriver) EnumeratePhysicalDevices(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result {
	return vk.EnumeratePhysicalDevices(instance, count, devices)
}

func (vulkanDriver) GetPhysicalDeviceProperties(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties) {
	vk.GetPhysicalDeviceProperties(device, properties)
	properties.Deref()
	properties.Limits.Deref()
}

func (vulkanDriver) GetPhysicalDeviceFeatures(device vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures) {
	vk.GetPhysicalDeviceFeatures(device, features)
	features.Deref()
}

func (vulkanDriver) GetPhysicalDeviceMemoryProperties(device vk.PhysicalDevice, memory *vk.PhysicalDeviceMemoryProperties) {
	vk.GetPhysicalDeviceMemoryProperties(device, memory)
	memory.Deref()
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		memory.MemoryTypes[i].Deref()
	}
	for i := uint32(0); i < memory.MemoryHeapCount; i++ {
		memory.MemoryHeaps[i].Deref()
	}
}

func (vulkanDriver) GetPhysicalDeviceQueueFamilyProperties(device vk.PhysicalDevice, count *uint32, properties []vk.QueueFamilyProperties) {
	vk.GetPhysicalDeviceQueueFamilyProperties(device, count, properties)
	for i := range properties {
		properties[i].Deref()
	}
}

func (vulkanDriver) GetPhysicalDeviceSurfaceSupport(device vk.PhysicalDevice, queueFamilyIndex uint32, surface vk.Surface, supported *vk.Bool32) vk.Result {
	return vk.GetPhysicalDeviceSurfaceSupport(device, queueFamilyIndex, surface, supported)
}

func (vulkanDriver) EnumerateDeviceExtensionProperties(device vk.PhysicalDevice, layerName string, count *uint32, properties []vk.ExtensionProperties) vk.Result {
	res := vk.EnumerateDeviceExtensionProperties(device, layerName, count, properties)
	for i := range properties {
		properties[i].Deref()
	}
	return res
}

func (vulkanDriver) GetPhysicalDeviceSurfaceCapabilities(device vk.PhysicalDevice, surface vk.Surface, capabilities *vk.SurfaceCapabilities) vk.Result {
	res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, capabilities)
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	return res
}

func (vulkanDriver) GetPhysicalDeviceSurfaceFormats(device vk.PhysicalDevice, surface vk.Surface, count *uint32, formats []vk.SurfaceFormat) vk.Result {
	res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return res
}

func (vulkanDriver) GetPhysicalDeviceSurfacePresentModes(device vk.PhysicalDevice, surface vk.Surface, count *uint32, modes []vk.PresentMode) vk.Result {
	return vk.GetPhysicalDeviceSurfacePresentModes(device, surface, count, modes)
}

func (vulkanDriver) GetPhysicalDeviceFormatProperties(device vk.PhysicalDevice, format vk.Format, properties *vk.FormatProperties) {
	vk.GetPhysicalDeviceFormatProperties(device, format, properties)
	properties.Deref()
}

func (vulkanDriver) CreateDevice(physical vk.PhysicalDevice, info *vk.DeviceCreateInfo, allocator *vk.AllocationCallbacks, device *vk.Device) vk.Result {
	return vk.CreateDevice(physical, info, allocator, device)
}

func (vulkanDriver) DestroyDevice(device vk.Device, allocator *vk.AllocationCallbacks) {
	vk.DestroyDevice(device, allocator)
}

func (vulkanDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.DeviceWaitIdle(device)
}

func (vulkanDriver) GetDeviceQueue(device vk.Device, familyIndex uint32, queueIndex uint32, queue *vk.Queue) {
	vk.GetDeviceQueue(device, familyIndex, queueIndex, queue)
}

func (vulkanDriver) QueueSubmit(queue vk.Queue, count uint32, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, count, submits, fence)
}

func (vulkanDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.QueueWaitIdle(queue)
}

func (vulkanDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo, allocator *vk.AllocationCallbacks, pool *vk.CommandPool) vk.Result {
	return vk.CreateCommandPool(device, info, allocator, pool)
}

func (vulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool, allocator *vk.AllocationCallbacks) {
	vk.DestroyCommandPool(device, pool, allocator)
}

func (vulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, allocator *vk.AllocationCallbacks, swapchain *vk.Swapchain) vk.Result {
	return vk.CreateSwapchain(device, info, allocator, swapchain)
}

func (vulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain, allocator *vk.AllocationCallbacks) {
	vk.DestroySwapchain(device, swapchain, allocator)
}

func (vulkanDriver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain, count *uint32, images []vk.Image) vk.Result {
	return vk.GetSwapchainImages(device, swapchain, count, images)
}

func (vulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence, imageIndex *uint32) vk.Result {
	return vk.AcquireNextImage(device, swapchain, timeout, semaphore, fence, imageIndex)
}

func (vulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vulkanDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo, allocator *vk.AllocationCallbacks, image *vk.Image) vk.Result {
	return vk.CreateImage(device, info, allocator, image)
}

func (vulkanDriver) DestroyImage(device vk.Device, image vk.Image, allocator *vk.AllocationCallbacks) {
	vk.DestroyImage(device, image, allocator)
}

func (vulkanDriver) GetImageMemoryRequirements(device vk.Device, image vk.Image, requirements *vk.MemoryRequirements) {
	vk.GetImageMemoryRequirements(device, image, requirements)
	requirements.Deref()
}

func (vulkanDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, allocator *vk.AllocationCallbacks, memory *vk.DeviceMemory) vk.Result {
	return vk.AllocateMemory(device, info, allocator, memory)
}

func (vulkanDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory, allocator *vk.AllocationCallbacks) {
	vk.FreeMemory(device, memory, allocator)
}

func (vulkanDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.BindImageMemory(device, image, memory, offset)
}

func (vulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo, allocator *vk.AllocationCallbacks, view *vk.ImageView) vk.Result {
	return vk.CreateImageView(device, info, allocator, view)
}

func (vulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView, allocator *vk.AllocationCallbacks) {
	vk.DestroyImageView(device, view, allocator)
}

func (vulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo, allocator *vk.AllocationCallbacks, renderpass *vk.RenderPass) vk.Result {
	return vk.CreateRenderPass(device, info, allocator, renderpass)
}

func (vulkanDriver) DestroyRenderPass(device vk.Device, renderpass vk.RenderPass, allocator *vk.AllocationCallbacks) {
	vk.DestroyRenderPass(device, renderpass, allocator)
}

func (vulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo, allocator *vk.AllocationCallbacks, framebuffer *vk.Framebuffer) vk.Result {
	return vk.CreateFramebuffer(device, info, allocator, framebuffer)
}

func (vulkanDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer, allocator *vk.AllocationCallbacks) {
	vk.DestroyFramebuffer(device, framebuffer, allocator)
}

func (vulkanDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result {
	return vk.AllocateCommandBuffers(device, info, buffers)
}

func (vulkanDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, count, buffers)
}

func (vulkanDriver) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(buffer, info)
}

func (vulkanDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(buffer)
}

func (vulkanDriver) CmdSetViewport(buffer vk.CommandBuffer, first uint32, count uint32, viewports []vk.Viewport) {
	vk.CmdSetViewport(buffer, first, count, viewports)
}

func (vulkanDriver) CmdSetScissor(buffer vk.CommandBuffer, first uint32, count uint32, scissors []vk.Rect2D) {
	vk.CmdSetScissor(buffer, first, count, scissors)
}

func (vulkanDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(buffer, info, contents)
}

func (vulkanDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (vulkanDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo, allocator *vk.AllocationCallbacks, fence *vk.Fence) vk.Result {
	return vk.CreateFence(device, info, allocator, fence)
}

func (vulkanDriver) DestroyFence(device vk.Device, fence vk.Fence, allocator *vk.AllocationCallbacks) {
	vk.DestroyFence(device, fence, allocator)
}

func (vulkanDriver) WaitForFences(device vk.Device, count uint32, fences []vk.Fence, waitAll vk.Bool32, timeout uint64) vk.Result {
	return vk.WaitForFences(device, count, fences, waitAll, timeout)
}

func (vulkanDriver) ResetFences(device vk.Device, count uint32, fences []vk.Fence) vk.Result {
	return vk.ResetFences(device, count, fences)
}

func (vulkanDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo, allocator *vk.AllocationCallbacks, semaphore *vk.Semaphore) vk.Result {
	return vk.CreateSemaphore(device, info, allocator, semaphore)
}

func (vulkanDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore, allocator *vk.AllocationCallbacks) {
	vk.DestroySemaphore(device, semaphore, allocator)
}
