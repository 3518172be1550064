package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Driver is every Vulkan entry point the backend uses. The signatures follow
// the C API; implementations fill output structs completely (no lazy C refs).
type Driver interface {
	// Instance
	EnumerateInstanceLayerProperties(count *uint32, properties []vk.LayerProperties) vk.Result
	CreateInstance(info *vk.InstanceCreateInfo, allocator *vk.AllocationCallbacks, instance *vk.Instance) vk.Result
	DestroyInstance(instance vk.Instance, allocator *vk.AllocationCallbacks)
	CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo, allocator *vk.AllocationCallbacks, callback *vk.DebugReportCallback) vk.Result
	DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback, allocator *vk.AllocationCallbacks)
	DestroySurface(instance vk.Instance, surface vk.Surface, allocator *vk.AllocationCallbacks)

	// Physical device
	EnumeratePhysicalDevices(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result
	GetPhysicalDeviceProperties(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties)
	GetPhysicalDeviceFeatures(device vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures)
	GetPhysicalDeviceMemoryProperties(device vk.PhysicalDevice, memory *vk.PhysicalDeviceMemoryProperties)
	GetPhysicalDeviceQueueFamilyProperties(device vk.PhysicalDevice, count *uint32, properties []vk.QueueFamilyProperties)
	GetPhysicalDeviceSurfaceSupport(device vk.PhysicalDevice, queueFamilyIndex uint32, surface vk.Surface, supported *vk.Bool32) vk.Result
	EnumerateDeviceExtensionProperties(device vk.PhysicalDevice, layerName string, count *uint32, properties []vk.ExtensionProperties) vk.Result
	GetPhysicalDeviceSurfaceCapabilities(device vk.PhysicalDevice, surface vk.Surface, capabilities *vk.SurfaceCapabilities) vk.Result
	GetPhysicalDeviceSurfaceFormats(device vk.PhysicalDevice, surface vk.Surface, count *uint32, formats []vk.SurfaceFormat) vk.Result
	GetPhysicalDeviceSurfacePresentModes(device vk.PhysicalDevice, surface vk.Surface, count *uint32, modes []vk.PresentMode) vk.Result
	GetPhysicalDeviceFormatProperties(device vk.PhysicalDevice, format vk.Format, properties *vk.FormatProperties)

	// Logical device and queues
	CreateDevice(physical vk.PhysicalDevice, info *vk.DeviceCreateInfo, allocator *vk.AllocationCallbacks, device *vk.Device) vk.Result
	DestroyDevice(device vk.Device, allocator *vk.AllocationCallbacks)
	DeviceWaitIdle(device vk.Device) vk.Result
	GetDeviceQueue(device vk.Device, familyIndex uint32, queueIndex uint32, queue *vk.Queue)
	QueueSubmit(queue vk.Queue, count uint32, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	QueueWaitIdle(queue vk.Queue) vk.Result
	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo, allocator *vk.AllocationCallbacks, pool *vk.CommandPool) vk.Result
	DestroyCommandPool(device vk.Device, pool vk.CommandPool, allocator *vk.AllocationCallbacks)

	// Swapchain
	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, allocator *vk.AllocationCallbacks, swapchain *vk.Swapchain) vk.Result
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain, allocator *vk.AllocationCallbacks)
	GetSwapchainImages(device vk.Device, swapchain vk.Swapchain, count *uint32, images []vk.Image) vk.Result
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence, imageIndex *uint32) vk.Result
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	// Images and memory
	CreateImage(device vk.Device, info *vk.ImageCreateInfo, allocator *vk.AllocationCallbacks, image *vk.Image) vk.Result
	DestroyImage(device vk.Device, image vk.Image, allocator *vk.AllocationCallbacks)
	GetImageMemoryRequirements(device vk.Device, image vk.Image, requirements *vk.MemoryRequirements)
	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, allocator *vk.AllocationCallbacks, memory *vk.DeviceMemory) vk.Result
	FreeMemory(device vk.Device, memory vk.DeviceMemory, allocator *vk.AllocationCallbacks)
	BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo, allocator *vk.AllocationCallbacks, view *vk.ImageView) vk.Result
	DestroyImageView(device vk.Device, view vk.ImageView, allocator *vk.AllocationCallbacks)

	// Render pass and framebuffers
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo, allocator *vk.AllocationCallbacks, renderpass *vk.RenderPass) vk.Result
	DestroyRenderPass(device vk.Device, renderpass vk.RenderPass, allocator *vk.AllocationCallbacks)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo, allocator *vk.AllocationCallbacks, framebuffer *vk.Framebuffer) vk.Result
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer, allocator *vk.AllocationCallbacks)

	// Command buffers
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32, buffers []vk.CommandBuffer)
	BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(buffer vk.CommandBuffer) vk.Result
	CmdSetViewport(buffer vk.CommandBuffer, first uint32, count uint32, viewports []vk.Viewport)
	CmdSetScissor(buffer vk.CommandBuffer, first uint32, count uint32, scissors []vk.Rect2D)
	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdEndRenderPass(buffer vk.CommandBuffer)

	// Synchronization
	CreateFence(device vk.Device, info *vk.FenceCreateInfo, allocator *vk.AllocationCallbacks, fence *vk.Fence) vk.Result
	DestroyFence(device vk.Device, fence vk.Fence, allocator *vk.AllocationCallbacks)
	WaitForFences(device vk.Device, count uint32, fences []vk.Fence, waitAll vk.Bool32, timeout uint64) vk.Result
	ResetFences(device vk.Device, count uint32, fences []vk.Fence) vk.Result
	CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo, allocator *vk.AllocationCallbacks, semaphore *vk.Semaphore) vk.Result
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore, allocator *vk.AllocationCallbacks)
}

// SurfaceSource is the windowing collaborator. It is only consulted while the
// backend starts up.
type SurfaceSource interface {
	RequiredExtensionNames() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}
