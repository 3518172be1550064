package vulkan

import (
	"fmt"
	"strings"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

// fakeHandle forges an opaque handle. The values never point into Go memory.
func fakeHandle[T any](id uint64) T {
	var h T
	*(*uintptr)(unsafe.Pointer(&h)) = uintptr(0x10000 + id<<4)
	return h
}

func cString(dst []byte, s string) {
	copy(dst, s)
}

func trimNul(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = strings.TrimSuffix(list[i], "\x00")
	}
	return out
}

type fakePhysicalDevice struct {
	name         string
	deviceType   vk.PhysicalDeviceType
	anisotropy   bool
	families     []vk.QueueFlagBits
	present      []bool
	extensions   []string
	memoryTypes  []vk.MemoryPropertyFlagBits
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
	depthFormats map[vk.Format]bool

	surfaceSupportResult vk.Result
}

func newFakePhysicalDevice(name string) *fakePhysicalDevice {
	return &fakePhysicalDevice{
		name:       name,
		deviceType: vk.PhysicalDeviceTypeDiscreteGpu,
		anisotropy: true,
		families: []vk.QueueFlagBits{
			vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit,
			vk.QueueTransferBit,
		},
		present:     []bool{true, false},
		extensions:  []string{vk.KhrSwapchainExtensionName},
		memoryTypes: []vk.MemoryPropertyFlagBits{vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyDeviceLocalBit},
		capabilities: vk.SurfaceCapabilities{
			MinImageCount:    2,
			MaxImageCount:    3,
			CurrentExtent:    vk.Extent2D{Width: 800, Height: 600},
			MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vk.SurfaceTransformIdentityBit,
		},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		presentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		depthFormats: map[vk.Format]bool{vk.FormatD32Sfloat: true},
	}
}

type fakeSubmit struct {
	buffers []vk.CommandBuffer
	wait    []vk.Semaphore
	signal  []vk.Semaphore
	stages  []vk.PipelineStageFlags
	fence   vk.Fence
}

type fakePresent struct {
	wait  []vk.Semaphore
	image uint32
}

// fakeDriver is an in-memory Driver. Objects are tracked so tests can check
// for leaks and double frees, and destroy calls are logged in order.
type fakeDriver struct {
	devices []*fakePhysicalDevice
	layers  []string

	// Overrides the result of the named call.
	fail map[string]vk.Result

	acquireResults []vk.Result
	presentResults []vk.Result
	// Results handed out by WaitForFences before falling back to the fence state.
	waitResults []vk.Result
	// When set, submitted fences never signal.
	hangSubmits bool

	nextID     uint64
	live       map[any]string
	errors     []string
	calls      []string
	fences     map[vk.Fence]bool
	swapImages map[vk.Swapchain]uint32
	nextImage  uint32

	instanceInfo     *vk.InstanceCreateInfo
	deviceInfo       *vk.DeviceCreateInfo
	swapchainInfos   []vk.SwapchainCreateInfo
	commandLevels    []vk.CommandBufferLevel
	beginFlags       []vk.CommandBufferUsageFlags
	viewports        []vk.Viewport
	scissors         []vk.Rect2D
	renderPassBegins []vk.RenderPassBeginInfo
	submits          []fakeSubmit
	presents         []fakePresent
	acquireSems      []vk.Semaphore
	waitTimeouts     []uint64
	idleWaits        int
	// Fence waits, resets and submissions in call order.
	fenceOps []fenceOp
}

type fenceOp struct {
	op    string
	fence vk.Fence
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		devices:    []*fakePhysicalDevice{newFakePhysicalDevice("Fake Discrete GPU")},
		layers:     []string{validationLayerName},
		fail:       map[string]vk.Result{},
		live:       map[any]string{},
		fences:     map[vk.Fence]bool{},
		swapImages: map[vk.Swapchain]uint32{},
	}
}

func (f *fakeDriver) result(call string) vk.Result {
	if res, ok := f.fail[call]; ok {
		return res
	}
	return vk.Success
}

func (f *fakeDriver) id() uint64 {
	f.nextID++
	return f.nextID
}

func (f *fakeDriver) create(kind string, h any) {
	f.live[h] = kind
}

func (f *fakeDriver) destroy(call string, kind string, h any) {
	f.calls = append(f.calls, call)
	got, ok := f.live[h]
	if !ok {
		f.errors = append(f.errors, fmt.Sprintf("%s on unknown %s %v", call, kind, h))
		return
	}
	if got != kind {
		f.errors = append(f.errors, fmt.Sprintf("%s on a %s", call, got))
	}
	delete(f.live, h)
}

// liveCount returns how many objects of kind exist.
func (f *fakeDriver) liveCount(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDriver) physical(device vk.PhysicalDevice) *fakePhysicalDevice {
	for i := range f.devices {
		if fakeHandle[vk.PhysicalDevice](uint64(1_000_000+i)) == device {
			return f.devices[i]
		}
	}
	panic("unknown physical device")
}

// Instance

func (f *fakeDriver) EnumerateInstanceLayerProperties(count *uint32, properties []vk.LayerProperties) vk.Result {
	if properties == nil {
		*count = uint32(len(f.layers))
		return vk.Success
	}
	for i := 0; i < int(*count) && i < len(f.layers); i++ {
		cString(properties[i].LayerName[:], f.layers[i])
	}
	return vk.Success
}

func (f *fakeDriver) CreateInstance(info *vk.InstanceCreateInfo, allocator *vk.AllocationCallbacks, instance *vk.Instance) vk.Result {
	if res := f.result("CreateInstance"); res != vk.Success {
		return res
	}
	copied := *info
	f.instanceInfo = &copied
	*instance = fakeHandle[vk.Instance](f.id())
	f.create("instance", *instance)
	return vk.Success
}

func (f *fakeDriver) DestroyInstance(instance vk.Instance, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyInstance", "instance", instance)
}

func (f *fakeDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo, allocator *vk.AllocationCallbacks, callback *vk.DebugReportCallback) vk.Result {
	*callback = fakeHandle[vk.DebugReportCallback](f.id())
	f.create("debug", *callback)
	return vk.Success
}

func (f *fakeDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyDebugReportCallback", "debug", callback)
}

func (f *fakeDriver) DestroySurface(instance vk.Instance, surface vk.Surface, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroySurface", "surface", surface)
}

// Physical device

func (f *fakeDriver) EnumeratePhysicalDevices(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result {
	if devices == nil {
		*count = uint32(len(f.devices))
		return vk.Success
	}
	for i := 0; i < int(*count) && i < len(f.devices); i++ {
		devices[i] = fakeHandle[vk.PhysicalDevice](uint64(1_000_000 + i))
	}
	return vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceProperties(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties) {
	pd := f.physical(device)
	*properties = vk.PhysicalDeviceProperties{
		ApiVersion:    uint32(vk.MakeVersion(1, 2, 0)),
		DriverVersion: uint32(vk.MakeVersion(1, 0, 0)),
		DeviceType:    pd.deviceType,
	}
	cString(properties.DeviceName[:], pd.name)
}

func (f *fakeDriver) GetPhysicalDeviceFeatures(device vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures) {
	*features = vk.PhysicalDeviceFeatures{}
	if f.physical(device).anisotropy {
		features.SamplerAnisotropy = vk.True
	}
}

func (f *fakeDriver) GetPhysicalDeviceMemoryProperties(device vk.PhysicalDevice, memory *vk.PhysicalDeviceMemoryProperties) {
	pd := f.physical(device)
	*memory = vk.PhysicalDeviceMemoryProperties{
		MemoryTypeCount: uint32(len(pd.memoryTypes)),
		MemoryHeapCount: 1,
	}
	for i, flags := range pd.memoryTypes {
		memory.MemoryTypes[i] = vk.MemoryType{PropertyFlags: vk.MemoryPropertyFlags(flags)}
	}
	memory.MemoryHeaps[0] = vk.MemoryHeap{
		Size:  4 << 30,
		Flags: vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit),
	}
}

func (f *fakeDriver) GetPhysicalDeviceQueueFamilyProperties(device vk.PhysicalDevice, count *uint32, properties []vk.QueueFamilyProperties) {
	pd := f.physical(device)
	if properties == nil {
		*count = uint32(len(pd.families))
		return
	}
	for i := 0; i < int(*count) && i < len(pd.families); i++ {
		properties[i] = vk.QueueFamilyProperties{
			QueueFlags: vk.QueueFlags(pd.families[i]),
			QueueCount: 1,
		}
	}
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceSupport(device vk.PhysicalDevice, queueFamilyIndex uint32, surface vk.Surface, supported *vk.Bool32) vk.Result {
	pd := f.physical(device)
	if pd.surfaceSupportResult != vk.Success {
		return pd.surfaceSupportResult
	}
	*supported = vk.False
	if int(queueFamilyIndex) < len(pd.present) && pd.present[queueFamilyIndex] {
		*supported = vk.True
	}
	return vk.Success
}

func (f *fakeDriver) EnumerateDeviceExtensionProperties(device vk.PhysicalDevice, layerName string, count *uint32, properties []vk.ExtensionProperties) vk.Result {
	pd := f.physical(device)
	if properties == nil {
		*count = uint32(len(pd.extensions))
		return vk.Success
	}
	for i := 0; i < int(*count) && i < len(pd.extensions); i++ {
		cString(properties[i].ExtensionName[:], pd.extensions[i])
	}
	return vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceCapabilities(device vk.PhysicalDevice, surface vk.Surface, capabilities *vk.SurfaceCapabilities) vk.Result {
	*capabilities = f.physical(device).capabilities
	return vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceFormats(device vk.PhysicalDevice, surface vk.Surface, count *uint32, formats []vk.SurfaceFormat) vk.Result {
	pd := f.physical(device)
	if formats == nil {
		*count = uint32(len(pd.formats))
		return vk.Success
	}
	*count = uint32(copy(formats[:*count], pd.formats))
	return vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfacePresentModes(device vk.PhysicalDevice, surface vk.Surface, count *uint32, modes []vk.PresentMode) vk.Result {
	pd := f.physical(device)
	if modes == nil {
		*count = uint32(len(pd.presentModes))
		return vk.Success
	}
	*count = uint32(copy(modes[:*count], pd.presentModes))
	return vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceFormatProperties(device vk.PhysicalDevice, format vk.Format, properties *vk.FormatProperties) {
	*properties = vk.FormatProperties{}
	if f.physical(device).depthFormats[format] {
		properties.OptimalTilingFeatures = vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	}
}

// Logical device and queues

func (f *fakeDriver) CreateDevice(physical vk.PhysicalDevice, info *vk.DeviceCreateInfo, allocator *vk.AllocationCallbacks, device *vk.Device) vk.Result {
	if res := f.result("CreateDevice"); res != vk.Success {
		return res
	}
	copied := *info
	f.deviceInfo = &copied
	*device = fakeHandle[vk.Device](f.id())
	f.create("device", *device)
	return vk.Success
}

func (f *fakeDriver) DestroyDevice(device vk.Device, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyDevice", "device", device)
}

func (f *fakeDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	f.idleWaits++
	return vk.Success
}

func (f *fakeDriver) GetDeviceQueue(device vk.Device, familyIndex uint32, queueIndex uint32, queue *vk.Queue) {
	*queue = fakeHandle[vk.Queue](uint64(2_000_000 + familyIndex))
}

func (f *fakeDriver) QueueSubmit(queue vk.Queue, count uint32, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	if res := f.result("QueueSubmit"); res != vk.Success {
		return res
	}
	for _, s := range submits[:count] {
		f.submits = append(f.submits, fakeSubmit{
			buffers: append([]vk.CommandBuffer(nil), s.PCommandBuffers...),
			wait:    append([]vk.Semaphore(nil), s.PWaitSemaphores...),
			signal:  append([]vk.Semaphore(nil), s.PSignalSemaphores...),
			stages:  append([]vk.PipelineStageFlags(nil), s.PWaitDstStageMask...),
			fence:   fence,
		})
	}
	f.fenceOps = append(f.fenceOps, fenceOp{"submit", fence})
	if fence != nil && !f.hangSubmits {
		f.fences[fence] = true
	}
	return vk.Success
}

func (f *fakeDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.Success
}

func (f *fakeDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo, allocator *vk.AllocationCallbacks, pool *vk.CommandPool) vk.Result {
	*pool = fakeHandle[vk.CommandPool](f.id())
	f.create("pool", *pool)
	return vk.Success
}

func (f *fakeDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyCommandPool", "pool", pool)
}

// Swapchain

func (f *fakeDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, allocator *vk.AllocationCallbacks, swapchain *vk.Swapchain) vk.Result {
	if res := f.result("CreateSwapchain"); res != vk.Success {
		return res
	}
	f.swapchainInfos = append(f.swapchainInfos, *info)
	*swapchain = fakeHandle[vk.Swapchain](f.id())
	f.create("swapchain", *swapchain)
	f.swapImages[*swapchain] = info.MinImageCount
	f.nextImage = 0
	return vk.Success
}

func (f *fakeDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroySwapchain", "swapchain", swapchain)
}

func (f *fakeDriver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain, count *uint32, images []vk.Image) vk.Result {
	n := f.swapImages[swapchain]
	if images == nil {
		*count = n
		return vk.Success
	}
	for i := uint32(0); i < *count && i < n; i++ {
		images[i] = fakeHandle[vk.Image](f.id())
	}
	return vk.Success
}

func (f *fakeDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence, imageIndex *uint32) vk.Result {
	f.acquireSems = append(f.acquireSems, semaphore)
	res := vk.Success
	if len(f.acquireResults) > 0 {
		res = f.acquireResults[0]
		f.acquireResults = f.acquireResults[1:]
	}
	if res == vk.Success || res == vk.Suboptimal {
		*imageIndex = f.nextImage
		f.nextImage = (f.nextImage + 1) % f.swapImages[swapchain]
	}
	return res
}

func (f *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.presents = append(f.presents, fakePresent{
		wait:  append([]vk.Semaphore(nil), info.PWaitSemaphores...),
		image: info.PImageIndices[0],
	})
	if len(f.presentResults) > 0 {
		res := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return res
	}
	return vk.Success
}

// Images and memory

func (f *fakeDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo, allocator *vk.AllocationCallbacks, image *vk.Image) vk.Result {
	*image = fakeHandle[vk.Image](f.id())
	f.create("image", *image)
	return vk.Success
}

func (f *fakeDriver) DestroyImage(device vk.Device, image vk.Image, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyImage", "image", image)
}

func (f *fakeDriver) GetImageMemoryRequirements(device vk.Device, image vk.Image, requirements *vk.MemoryRequirements) {
	*requirements = vk.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b11}
}

func (f *fakeDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, allocator *vk.AllocationCallbacks, memory *vk.DeviceMemory) vk.Result {
	*memory = fakeHandle[vk.DeviceMemory](f.id())
	f.create("memory", *memory)
	return vk.Success
}

func (f *fakeDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory, allocator *vk.AllocationCallbacks) {
	f.destroy("FreeMemory", "memory", memory)
}

func (f *fakeDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.Success
}

func (f *fakeDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo, allocator *vk.AllocationCallbacks, view *vk.ImageView) vk.Result {
	*view = fakeHandle[vk.ImageView](f.id())
	f.create("view", *view)
	return vk.Success
}

func (f *fakeDriver) DestroyImageView(device vk.Device, view vk.ImageView, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyImageView", "view", view)
}

// Render pass and framebuffers

func (f *fakeDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo, allocator *vk.AllocationCallbacks, renderpass *vk.RenderPass) vk.Result {
	if res := f.result("CreateRenderPass"); res != vk.Success {
		return res
	}
	*renderpass = fakeHandle[vk.RenderPass](f.id())
	f.create("renderpass", *renderpass)
	return vk.Success
}

func (f *fakeDriver) DestroyRenderPass(device vk.Device, renderpass vk.RenderPass, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyRenderPass", "renderpass", renderpass)
}

func (f *fakeDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo, allocator *vk.AllocationCallbacks, framebuffer *vk.Framebuffer) vk.Result {
	if _, ok := f.live[info.RenderPass]; !ok {
		f.errors = append(f.errors, "framebuffer created for a destroyed render pass")
	}
	*framebuffer = fakeHandle[vk.Framebuffer](f.id())
	f.create("framebuffer", *framebuffer)
	return vk.Success
}

func (f *fakeDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyFramebuffer", "framebuffer", framebuffer)
}

// Command buffers

func (f *fakeDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result {
	if res := f.result("AllocateCommandBuffers"); res != vk.Success {
		return res
	}
	for i := uint32(0); i < info.CommandBufferCount; i++ {
		buffers[i] = fakeHandle[vk.CommandBuffer](f.id())
		f.create("commandbuffer", buffers[i])
		f.commandLevels = append(f.commandLevels, info.Level)
	}
	return vk.Success
}

func (f *fakeDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, count uint32, buffers []vk.CommandBuffer) {
	for _, b := range buffers[:count] {
		f.destroy("FreeCommandBuffers", "commandbuffer", b)
	}
}

func (f *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	f.beginFlags = append(f.beginFlags, info.Flags)
	return vk.Success
}

func (f *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	return vk.Success
}

func (f *fakeDriver) CmdSetViewport(buffer vk.CommandBuffer, first uint32, count uint32, viewports []vk.Viewport) {
	f.viewports = append(f.viewports, viewports[:count]...)
}

func (f *fakeDriver) CmdSetScissor(buffer vk.CommandBuffer, first uint32, count uint32, scissors []vk.Rect2D) {
	f.scissors = append(f.scissors, scissors[:count]...)
}

func (f *fakeDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	f.renderPassBegins = append(f.renderPassBegins, *info)
}

func (f *fakeDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {}

// Synchronization

func (f *fakeDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo, allocator *vk.AllocationCallbacks, fence *vk.Fence) vk.Result {
	*fence = fakeHandle[vk.Fence](f.id())
	f.create("fence", *fence)
	f.fences[*fence] = info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0
	return vk.Success
}

func (f *fakeDriver) DestroyFence(device vk.Device, fence vk.Fence, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroyFence", "fence", fence)
	delete(f.fences, fence)
}

func (f *fakeDriver) WaitForFences(device vk.Device, count uint32, fences []vk.Fence, waitAll vk.Bool32, timeout uint64) vk.Result {
	f.waitTimeouts = append(f.waitTimeouts, timeout)
	for _, fence := range fences[:count] {
		f.fenceOps = append(f.fenceOps, fenceOp{"wait", fence})
	}
	if len(f.waitResults) > 0 {
		res := f.waitResults[0]
		f.waitResults = f.waitResults[1:]
		return res
	}
	for _, fence := range fences[:count] {
		if !f.fences[fence] {
			return vk.Timeout
		}
	}
	return vk.Success
}

func (f *fakeDriver) ResetFences(device vk.Device, count uint32, fences []vk.Fence) vk.Result {
	for _, fence := range fences[:count] {
		f.fenceOps = append(f.fenceOps, fenceOp{"reset", fence})
		f.fences[fence] = false
	}
	return vk.Success
}

func (f *fakeDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo, allocator *vk.AllocationCallbacks, semaphore *vk.Semaphore) vk.Result {
	*semaphore = fakeHandle[vk.Semaphore](f.id())
	f.create("semaphore", *semaphore)
	return vk.Success
}

func (f *fakeDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore, allocator *vk.AllocationCallbacks) {
	f.destroy("DestroySemaphore", "semaphore", semaphore)
}

// fakeSurfaces hands out surfaces tracked by the driver.
type fakeSurfaces struct {
	driver     *fakeDriver
	extensions []string
	err        error
}

func (s *fakeSurfaces) RequiredExtensionNames() []string {
	return s.extensions
}

func (s *fakeSurfaces) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	if s.err != nil {
		return vk.NullSurface, s.err
	}
	surface := fakeHandle[vk.Surface](s.driver.id())
	s.driver.create("surface", surface)
	return surface, nil
}

// newTestContext returns a context with an instance and a surface, ready for
// device selection.
func newTestContext(f *fakeDriver) *VulkanContext {
	return &VulkanContext{
		Driver:        f,
		Arena:         memory.NewArena(1 << 20),
		Instance:      fakeHandle[vk.Instance](f.id()),
		Surface:       fakeHandle[vk.Surface](f.id()),
		PreferMailbox: true,
	}
}

// newDeviceContext returns a context with a logical device created on the
// first fake GPU.
func newDeviceContext(t *testing.T, f *fakeDriver) *VulkanContext {
	t.Helper()
	context := newTestContext(f)
	require.NoError(t, DeviceCreate(context, NewPhysicalDeviceRequirements(config.Default().Renderer.Device)))
	return context
}

func testRendererConfig() config.RendererConfig {
	cfg := config.Default().Renderer
	cfg.Device.DiscreteGPU = false
	return cfg
}

// newTestRenderer initializes a backend at 800x600 against f.
func newTestRenderer(t *testing.T, f *fakeDriver, cfg config.RendererConfig) *VulkanRenderer {
	t.Helper()
	vr := New(cfg, &fakeSurfaces{driver: f, extensions: []string{"VK_KHR_xcb_surface"}}, f)
	require.NoError(t, vr.Initialize("test", 800, 600))
	return vr
}

// requireOrder checks that every call of kinds[i] happened before the first
// call of kinds[i+1].
func requireOrder(t *testing.T, calls []string, kinds ...string) {
	t.Helper()
	first := func(kind string) int {
		for i, c := range calls {
			if c == kind {
				return i
			}
		}
		return -1
	}
	last := func(kind string) int {
		for i := len(calls) - 1; i >= 0; i-- {
			if calls[i] == kind {
				return i
			}
		}
		return -1
	}
	for i := 0; i+1 < len(kinds); i++ {
		a, b := last(kinds[i]), first(kinds[i+1])
		require.NotEqual(t, -1, a, "%s never called", kinds[i])
		require.NotEqual(t, -1, b, "%s never called", kinds[i+1])
		require.Less(t, a, b, "%s must complete before %s", kinds[i], kinds[i+1])
	}
}

// requireSame compares handles by identity. Handles point at opaque structs,
// which deep equality always reports as equal.
func requireSame[T comparable](t *testing.T, want, got T, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, want == got, msgAndArgs...)
}
