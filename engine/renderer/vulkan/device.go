package vulkan

import (
	"fmt"
	"runtime"
	"slices"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

// noQueueFamily marks a queue family index that has not been resolved.
const noQueueFamily int32 = -1

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue
	ComputeQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

// NewPhysicalDeviceRequirements builds the selection requirements from the
// renderer configuration. The frame loop always draws and presents, so the
// graphics and present queues and the swapchain extension are always required.
func NewPhysicalDeviceRequirements(cfg config.DeviceConfig) *VulkanPhysicalDeviceRequirements {
	requirements := &VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Compute:              cfg.Compute,
		Transfer:             cfg.Transfer,
		SamplerAnisotropy:    cfg.SamplerAnisotropy,
		DiscreteGPU:          cfg.DiscreteGPU,
		DeviceExtensionNames: slices.Clone(cfg.Extensions),
	}
	if !slices.Contains(requirements.DeviceExtensionNames, vk.KhrSwapchainExtensionName) {
		requirements.DeviceExtensionNames = append(requirements.DeviceExtensionNames, vk.KhrSwapchainExtensionName)
	}
	// Apple silicon only exposes integrated GPUs.
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}
	return requirements
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

func newQueueFamilyInfo() VulkanPhysicalDeviceQueueFamilyInfo {
	return VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: noQueueFamily,
		PresentFamilyIndex:  noQueueFamily,
		ComputeFamilyIndex:  noQueueFamily,
		TransferFamilyIndex: noQueueFamily,
	}
}

// SelectPhysicalDevice picks the first enumerated device that satisfies
// requirements and stores it, with its queue families, in context.Device.
func SelectPhysicalDevice(context *VulkanContext, requirements *VulkanPhysicalDeviceRequirements) error {
	scope := context.Arena.Scratch()
	defer scope.Close()

	var physicalDeviceCount uint32
	if res := context.Driver.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		core.LogError(ErrNoVulkanDevice.Error())
		return ErrNoVulkanDevice
	}

	physicalDevices, err := memory.ScratchAlloc[vk.PhysicalDevice](scope, int(physicalDeviceCount))
	if err != nil {
		return err
	}
	if res := context.Driver.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	if context.Device == nil {
		context.Device = &VulkanDevice{}
	}
	for i := 0; i < int(physicalDeviceCount); i++ {
		var properties vk.PhysicalDeviceProperties
		context.Driver.GetPhysicalDeviceProperties(physicalDevices[i], &properties)

		var features vk.PhysicalDeviceFeatures
		context.Driver.GetPhysicalDeviceFeatures(physicalDevices[i], &features)

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		context.Driver.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memoryProperties)

		queueInfo := newQueueFamilyInfo()
		var support VulkanSwapchainSupportInfo
		ok, err := PhysicalDeviceMeetsRequirements(context, physicalDevices[i], &properties, &features, requirements, &queueInfo, &support)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		core.LogInfo("Selected device: '%s'.", VulkanString(properties.DeviceName[:]))
		logDeviceReport(&properties, &memoryProperties)

		context.Device.PhysicalDevice = physicalDevices[i]
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		context.Device.TransferQueueIndex = queueInfo.TransferFamilyIndex
		context.Device.ComputeQueueIndex = queueInfo.ComputeFamilyIndex
		context.Device.SwapchainSupport = support

		// Keep a copy of properties, features and memory info for later use.
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memoryProperties

		core.LogInfo("Physical device selected.")
		return nil
	}

	core.LogError(ErrNoSuitableDevice.Error())
	return ErrNoSuitableDevice
}

// PhysicalDeviceMeetsRequirements evaluates one device. The returned error is
// reserved for allocation failures; a device that cannot be queried is skipped.
func PhysicalDeviceMeetsRequirements(
	context *VulkanContext,
	device vk.PhysicalDevice,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *VulkanPhysicalDeviceRequirements,
	outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo,
	outSwapchainSupport *VulkanSwapchainSupportInfo,
) (bool, error) {
	deviceName := VulkanString(properties.DeviceName[:])
	*outQueueInfo = newQueueFamilyInfo()

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device '%s' is not a discrete GPU, and one is required. Skipping.", deviceName)
		return false, nil
	}

	scope := context.Arena.Scratch()
	defer scope.Close()

	var queueFamilyCount uint32
	context.Driver.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies, err := memory.ScratchAlloc[vk.QueueFamilyProperties](scope, int(queueFamilyCount))
	if err != nil {
		return false, err
	}
	context.Driver.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	// Look at each queue and see what queues it supports
	minTransferScore := 255
	for i := 0; i < int(queueFamilyCount); i++ {
		flags := queueFamilies[i].QueueFlags
		currentTransferScore := 0

		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if outQueueInfo.GraphicsFamilyIndex == noQueueFamily {
				outQueueInfo.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}

		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			if outQueueInfo.ComputeFamilyIndex == noQueueFamily {
				outQueueInfo.ComputeFamilyIndex = int32(i)
			}
			currentTransferScore++
		}

		// Take the least crowded transfer family. This increases the
		// likelihood that it is a dedicated transfer queue.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 {
			if currentTransferScore <= minTransferScore {
				minTransferScore = currentTransferScore
				outQueueInfo.TransferFamilyIndex = int32(i)
			}
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := context.Driver.GetPhysicalDeviceSurfaceSupport(device, uint32(i), context.Surface, &supportsPresent); res != vk.Success {
			core.LogWarn("Surface support query failed on '%s': %s. Skipping.", deviceName, VulkanResultString(res, false))
			return false, nil
		}
		if supportsPresent == vk.True && outQueueInfo.PresentFamilyIndex == noQueueFamily {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogInfo("Graphics | Present | Compute | Transfer | Name")
	core.LogInfo("       %t |       %t |       %t |        %t | %s",
		outQueueInfo.GraphicsFamilyIndex != noQueueFamily,
		outQueueInfo.PresentFamilyIndex != noQueueFamily,
		outQueueInfo.ComputeFamilyIndex != noQueueFamily,
		outQueueInfo.TransferFamilyIndex != noQueueFamily,
		deviceName)

	if (requirements.Graphics && outQueueInfo.GraphicsFamilyIndex == noQueueFamily) ||
		(requirements.Present && outQueueInfo.PresentFamilyIndex == noQueueFamily) ||
		(requirements.Compute && outQueueInfo.ComputeFamilyIndex == noQueueFamily) ||
		(requirements.Transfer && outQueueInfo.TransferFamilyIndex == noQueueFamily) {
		core.LogInfo("Device '%s' does not meet queue requirements. Skipping.", deviceName)
		return false, nil
	}

	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", outQueueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", outQueueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", outQueueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", outQueueInfo.ComputeFamilyIndex)

	if err := DeviceQuerySwapchainSupport(context, device, outSwapchainSupport); err != nil {
		core.LogWarn("Swapchain support query failed on '%s': %s. Skipping.", deviceName, err)
		return false, nil
	}
	if len(outSwapchainSupport.Formats) < 1 || len(outSwapchainSupport.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false, nil
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensionNames(context, scope, device)
		if err != nil {
			core.LogWarn("Extension query failed on '%s': %s. Skipping.", deviceName, err)
			return false, nil
		}
		for _, required := range requirements.DeviceExtensionNames {
			if !slices.Contains(available, required) {
				core.LogInfo("Required extension not found: '%s', skipping device.", required)
				return false, nil
			}
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false, nil
	}

	// Device meets all requirements.
	return true, nil
}

// deviceExtensionNames lists the extensions of device. The property array
// lives in scope.
func deviceExtensionNames(context *VulkanContext, scope *memory.Scope, device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := context.Driver.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	if count == 0 {
		return nil, nil
	}
	properties, err := memory.ScratchAlloc[vk.ExtensionProperties](scope, int(count))
	if err != nil {
		return nil, err
	}
	if res := context.Driver.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	names := make([]string, count)
	for i := range names {
		names[i] = VulkanString(properties[i].ExtensionName[:])
	}
	return names, nil
}

// DeviceCreate selects a physical device and creates the logical device, its
// queues and the graphics command pool.
func DeviceCreate(context *VulkanContext, requirements *VulkanPhysicalDeviceRequirements) error {
	if err := SelectPhysicalDevice(context, requirements); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	var indices []uint32
	for _, index := range []int32{device.GraphicsQueueIndex, device.PresentQueueIndex, device.TransferQueueIndex, device.ComputeQueueIndex} {
		if index != noQueueFamily && !slices.Contains(indices, uint32(index)) {
			indices = append(indices, uint32(index))
		}
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if requirements.SamplerAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensionNames := slices.Clone(requirements.DeviceExtensionNames)
	portabilityRequired, err := portabilitySubsetAvailable(context, device.PhysicalDevice)
	if err != nil {
		return err
	}
	if portabilityRequired && !slices.Contains(extensionNames, portabilitySubsetExtensionName) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, portabilitySubsetExtensionName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	if res := context.Driver.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device.LogicalDevice); res != vk.Success {
		return resultError("vkCreateDevice", res)
	}
	core.LogInfo("Logical device created.")

	queues := []struct {
		index int32
		queue *vk.Queue
	}{
		{device.GraphicsQueueIndex, &device.GraphicsQueue},
		{device.PresentQueueIndex, &device.PresentQueue},
		{device.TransferQueueIndex, &device.TransferQueue},
		{device.ComputeQueueIndex, &device.ComputeQueue},
	}
	for _, q := range queues {
		if q.index != noQueueFamily {
			context.Driver.GetDeviceQueue(device.LogicalDevice, uint32(q.index), 0, q.queue)
		}
	}
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := context.Driver.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &device.GraphicsCommandPool); res != vk.Success {
		return resultError("vkCreateCommandPool", res)
	}
	core.LogInfo("Graphics command pool created.")

	return nil
}

func portabilitySubsetAvailable(context *VulkanContext, device vk.PhysicalDevice) (bool, error) {
	scope := context.Arena.Scratch()
	defer scope.Close()

	names, err := deviceExtensionNames(context, scope, device)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, portabilitySubsetExtensionName), nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}

	// Unset queues
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.TransferQueue = nil
	device.ComputeQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		context.Driver.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		context.Driver.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}

	device.GraphicsQueueIndex = noQueueFamily
	device.PresentQueueIndex = noQueueFamily
	device.TransferQueueIndex = noQueueFamily
	device.ComputeQueueIndex = noQueueFamily
}

// DeviceQuerySwapchainSupport fills supportInfo with the capabilities, formats
// and present modes of the context surface on physicalDevice.
func DeviceQuerySwapchainSupport(context *VulkanContext, physicalDevice vk.PhysicalDevice, supportInfo *VulkanSwapchainSupportInfo) error {
	d := context.Driver
	if res := d.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, context.Surface, &supportInfo.Capabilities); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}

	var formatCount uint32
	if res := d.GetPhysicalDeviceSurfaceFormats(physicalDevice, context.Surface, &formatCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount != 0 {
		if res := d.GetPhysicalDeviceSurfaceFormats(physicalDevice, context.Surface, &formatCount, supportInfo.Formats); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		supportInfo.Formats = supportInfo.Formats[:formatCount]
	}

	var presentModeCount uint32
	if res := d.GetPhysicalDeviceSurfacePresentModes(physicalDevice, context.Surface, &presentModeCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount != 0 {
		if res := d.GetPhysicalDeviceSurfacePresentModes(physicalDevice, context.Surface, &presentModeCount, supportInfo.PresentModes); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
		supportInfo.PresentModes = supportInfo.PresentModes[:presentModeCount]
	}
	return nil
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// DeviceDetectDepthFormat stores the first candidate usable as a depth/stencil
// attachment in either tiling.
func DeviceDetectDepthFormat(context *VulkanContext) error {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthFormatCandidates {
		var properties vk.FormatProperties
		context.Driver.GetPhysicalDeviceFormatProperties(context.Device.PhysicalDevice, candidate, &properties)
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			context.Device.DepthFormat = candidate
			return nil
		}
	}
	return ErrNoDepthFormat
}

func logDeviceReport(properties *vk.PhysicalDeviceProperties, memoryProperties *vk.PhysicalDeviceMemoryProperties) {
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo("GPU Driver version: %s", versionString(properties.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(properties.ApiVersion))

	for j := uint32(0); j < memoryProperties.MemoryHeapCount; j++ {
		heap := memoryProperties.MemoryHeaps[j]
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
