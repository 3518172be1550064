package vulkan

import (
	"runtime"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/kiwi/engine/config"
)

func allRequirements() *VulkanPhysicalDeviceRequirements {
	return &VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		Compute:              true,
		SamplerAnisotropy:    true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
}

func evaluate(t *testing.T, f *fakeDriver, requirements *VulkanPhysicalDeviceRequirements) (bool, VulkanPhysicalDeviceQueueFamilyInfo) {
	t.Helper()
	context := newTestContext(f)
	device := fakeHandle[vk.PhysicalDevice](1_000_000)

	var properties vk.PhysicalDeviceProperties
	f.GetPhysicalDeviceProperties(device, &properties)
	var features vk.PhysicalDeviceFeatures
	f.GetPhysicalDeviceFeatures(device, &features)

	queueInfo := newQueueFamilyInfo()
	var support VulkanSwapchainSupportInfo
	ok, err := PhysicalDeviceMeetsRequirements(context, device, &properties, &features, requirements, &queueInfo, &support)
	require.NoError(t, err)
	// Scratch scopes are all released.
	require.Zero(t, context.Arena.Used())
	return ok, queueInfo
}

func TestQueueFamilySelection(t *testing.T) {
	G, C, T := vk.QueueGraphicsBit, vk.QueueComputeBit, vk.QueueTransferBit

	for _, tc := range []struct {
		name     string
		families []vk.QueueFlagBits
		present  []bool
		want     VulkanPhysicalDeviceQueueFamilyInfo
	}{
		{
			name:     "single universal family",
			families: []vk.QueueFlagBits{G | C | T},
			present:  []bool{true},
			want:     VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0, ComputeFamilyIndex: 0, TransferFamilyIndex: 0},
		},
		{
			name:     "dedicated transfer family wins",
			families: []vk.QueueFlagBits{G | C | T, C | T, T},
			present:  []bool{true, false, false},
			want:     VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0, ComputeFamilyIndex: 0, TransferFamilyIndex: 2},
		},
		{
			name:     "equally crowded transfer families pick the last",
			families: []vk.QueueFlagBits{G | C | T, T, T},
			present:  []bool{true, false, false},
			want:     VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 0, ComputeFamilyIndex: 0, TransferFamilyIndex: 2},
		},
		{
			name:     "first graphics and compute families win",
			families: []vk.QueueFlagBits{C | T, G | T, G | C | T},
			present:  []bool{false, false, true},
			want:     VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 1, PresentFamilyIndex: 2, ComputeFamilyIndex: 0, TransferFamilyIndex: 1},
		},
		{
			name:     "separate present family",
			families: []vk.QueueFlagBits{G | C | T, T},
			present:  []bool{false, true},
			want:     VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: 0, PresentFamilyIndex: 1, ComputeFamilyIndex: 0, TransferFamilyIndex: 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeDriver()
			f.devices[0].families = tc.families
			f.devices[0].present = tc.present

			ok, queueInfo := evaluate(t, f, allRequirements())
			require.True(t, ok)
			require.Equal(t, tc.want, queueInfo)
		})
	}
}

func TestDeviceRejection(t *testing.T) {
	for _, tc := range []struct {
		name         string
		mutate       func(*fakePhysicalDevice)
		requirements func(*VulkanPhysicalDeviceRequirements)
	}{
		{
			name:         "integrated gpu when discrete is required",
			mutate:       func(d *fakePhysicalDevice) { d.deviceType = vk.PhysicalDeviceTypeIntegratedGpu },
			requirements: func(r *VulkanPhysicalDeviceRequirements) { r.DiscreteGPU = true },
		},
		{
			name:   "no graphics family",
			mutate: func(d *fakePhysicalDevice) { d.families = []vk.QueueFlagBits{vk.QueueComputeBit | vk.QueueTransferBit} },
		},
		{
			name:   "no present support",
			mutate: func(d *fakePhysicalDevice) { d.present = []bool{false, false} },
		},
		{
			name: "no compute family",
			mutate: func(d *fakePhysicalDevice) {
				d.families = []vk.QueueFlagBits{vk.QueueGraphicsBit | vk.QueueTransferBit}
				d.present = []bool{true}
			},
		},
		{
			name:   "no surface formats",
			mutate: func(d *fakePhysicalDevice) { d.formats = nil },
		},
		{
			name:   "no present modes",
			mutate: func(d *fakePhysicalDevice) { d.presentModes = nil },
		},
		{
			name:   "missing swapchain extension",
			mutate: func(d *fakePhysicalDevice) { d.extensions = []string{"VK_KHR_maintenance1"} },
		},
		{
			name:   "missing anisotropy",
			mutate: func(d *fakePhysicalDevice) { d.anisotropy = false },
		},
		{
			name:   "surface query fails",
			mutate: func(d *fakePhysicalDevice) { d.surfaceSupportResult = vk.ErrorSurfaceLost },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeDriver()
			if tc.mutate != nil {
				tc.mutate(f.devices[0])
			}
			requirements := allRequirements()
			if tc.requirements != nil {
				tc.requirements(requirements)
			}
			ok, _ := evaluate(t, f, requirements)
			require.False(t, ok)
		})
	}
}

func TestOptionalRequirementsAreIgnored(t *testing.T) {
	f := newFakeDriver()
	d := f.devices[0]
	d.deviceType = vk.PhysicalDeviceTypeIntegratedGpu
	d.anisotropy = false
	d.families = []vk.QueueFlagBits{vk.QueueGraphicsBit}
	d.present = []bool{true}

	ok, queueInfo := evaluate(t, f, &VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	})
	require.True(t, ok)
	require.Equal(t, noQueueFamily, queueInfo.ComputeFamilyIndex)
	require.Equal(t, noQueueFamily, queueInfo.TransferFamilyIndex)
}

func TestSelectPhysicalDevice(t *testing.T) {
	f := newFakeDriver()
	integrated := newFakePhysicalDevice("Fake Integrated GPU")
	integrated.deviceType = vk.PhysicalDeviceTypeIntegratedGpu
	noSwapchain := newFakePhysicalDevice("Fake Compute Card")
	noSwapchain.extensions = nil
	second := newFakePhysicalDevice("Second Discrete GPU")
	f.devices = []*fakePhysicalDevice{noSwapchain, integrated, f.devices[0], second}

	requirements := allRequirements()
	requirements.DiscreteGPU = true

	context := newTestContext(f)
	require.NoError(t, SelectPhysicalDevice(context, requirements))

	// First qualifying device in enumeration order.
	requireSame(t, fakeHandle[vk.PhysicalDevice](1_000_002), context.Device.PhysicalDevice)
	require.Equal(t, "Fake Discrete GPU", VulkanString(context.Device.Properties.DeviceName[:]))
	require.Equal(t, int32(0), context.Device.GraphicsQueueIndex)
	require.Equal(t, int32(1), context.Device.TransferQueueIndex)
	require.Len(t, context.Device.SwapchainSupport.Formats, 2)
	require.Equal(t, uint32(2), context.Device.Memory.MemoryTypeCount)
	require.Zero(t, context.Arena.Used())
}

func TestSelectPhysicalDeviceFailures(t *testing.T) {
	f := newFakeDriver()
	f.devices = nil
	require.ErrorIs(t, SelectPhysicalDevice(newTestContext(f), allRequirements()), ErrNoVulkanDevice)

	f = newFakeDriver()
	f.devices[0].anisotropy = false
	context := newTestContext(f)
	require.ErrorIs(t, SelectPhysicalDevice(context, allRequirements()), ErrNoSuitableDevice)
	require.Zero(t, context.Arena.Used())
}

func TestNewPhysicalDeviceRequirements(t *testing.T) {
	cfg := config.DeviceConfig{
		Graphics:    true,
		Present:     true,
		DiscreteGPU: true,
		Extensions:  []string{"VK_KHR_maintenance1"},
	}
	requirements := NewPhysicalDeviceRequirements(cfg)
	require.Equal(t, []string{"VK_KHR_maintenance1", vk.KhrSwapchainExtensionName}, requirements.DeviceExtensionNames)
	// The configuration is not aliased.
	require.Equal(t, []string{"VK_KHR_maintenance1"}, cfg.Extensions)
	require.Equal(t, runtime.GOOS != "darwin", requirements.DiscreteGPU)

	requirements = NewPhysicalDeviceRequirements(config.Default().Renderer.Device)
	require.Equal(t, []string{vk.KhrSwapchainExtensionName}, requirements.DeviceExtensionNames)

	// Drawing and presenting cannot be configured away.
	requirements = NewPhysicalDeviceRequirements(config.DeviceConfig{Compute: true})
	require.True(t, requirements.Graphics)
	require.True(t, requirements.Present)
	require.True(t, requirements.Compute)
}

func TestSelectPhysicalDeviceNeedsPresentQueue(t *testing.T) {
	f := newFakeDriver()
	f.devices[0].present = []bool{false, false}
	cfg := testRendererConfig()
	cfg.Device.Present = false

	vr := New(cfg, &fakeSurfaces{driver: f}, f)
	require.ErrorIs(t, vr.Initialize("test", 800, 600), ErrNoSuitableDevice)
	require.Empty(t, f.swapchainInfos)

	require.NoError(t, vr.Shutdown())
	require.Empty(t, f.errors)
	require.Empty(t, f.live)
}

func TestDeviceCreate(t *testing.T) {
	f := newFakeDriver()
	context := newDeviceContext(t, f)
	device := context.Device

	require.NotNil(t, device.LogicalDevice)
	require.NotNil(t, device.GraphicsCommandPool)

	// Graphics, present and compute share family 0, transfer lives on 1.
	info := f.deviceInfo
	require.Equal(t, uint32(2), info.QueueCreateInfoCount)
	require.Equal(t, uint32(0), info.PQueueCreateInfos[0].QueueFamilyIndex)
	require.Equal(t, uint32(1), info.PQueueCreateInfos[1].QueueFamilyIndex)
	require.Equal(t, []string{vk.KhrSwapchainExtensionName}, trimNul(info.PpEnabledExtensionNames))
	require.Equal(t, vk.Bool32(vk.True), info.PEnabledFeatures[0].SamplerAnisotropy)

	requireSame(t, device.GraphicsQueue, device.PresentQueue)
	require.True(t, device.GraphicsQueue != device.TransferQueue)
	require.Zero(t, context.Arena.Used())
}

func TestDeviceCreateAddsPortabilitySubset(t *testing.T) {
	f := newFakeDriver()
	f.devices[0].extensions = append(f.devices[0].extensions, portabilitySubsetExtensionName)

	newDeviceContext(t, f)
	require.Equal(t,
		[]string{vk.KhrSwapchainExtensionName, portabilitySubsetExtensionName},
		trimNul(f.deviceInfo.PpEnabledExtensionNames))
}

func TestDeviceCreateFailure(t *testing.T) {
	f := newFakeDriver()
	f.fail["CreateDevice"] = vk.ErrorInitializationFailed

	err := DeviceCreate(newTestContext(f), allRequirements())
	require.ErrorContains(t, err, "vkCreateDevice failed: VK_ERROR_INITIALIZATION_FAILED")
}

func TestDeviceDestroy(t *testing.T) {
	f := newFakeDriver()
	context := newDeviceContext(t, f)

	DeviceDestroy(context)
	require.Empty(t, f.errors)
	require.Equal(t, []string{"DestroyCommandPool", "DestroyDevice"}, f.calls)
	require.Nil(t, context.Device.LogicalDevice)
	require.Equal(t, noQueueFamily, context.Device.GraphicsQueueIndex)

	// Safe to call again and without a device.
	DeviceDestroy(context)
	DeviceDestroy(&VulkanContext{})
	require.Len(t, f.calls, 2)
}

func TestDeviceDetectDepthFormat(t *testing.T) {
	for _, tc := range []struct {
		name      string
		supported []vk.Format
		want      vk.Format
	}{
		{"all", []vk.Format{vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint}, vk.FormatD32Sfloat},
		{"stencil only", []vk.Format{vk.FormatD24UnormS8Uint}, vk.FormatD24UnormS8Uint},
		{"d32 with stencil", []vk.Format{vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint}, vk.FormatD32SfloatS8Uint},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeDriver()
			f.devices[0].depthFormats = map[vk.Format]bool{}
			for _, format := range tc.supported {
				f.devices[0].depthFormats[format] = true
			}
			context := newDeviceContext(t, f)
			require.NoError(t, DeviceDetectDepthFormat(context))
			require.Equal(t, tc.want, context.Device.DepthFormat)
		})
	}

	f := newFakeDriver()
	f.devices[0].depthFormats = nil
	require.ErrorIs(t, DeviceDetectDepthFormat(newDeviceContext(t, f)), ErrNoDepthFormat)
}

func TestFindMemoryIndex(t *testing.T) {
	context := newDeviceContext(t, newFakeDriver())

	index, err := context.FindMemoryIndex(0b11, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	require.NoError(t, err)
	require.Equal(t, uint32(1), index)

	_, err = context.FindMemoryIndex(0b01, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	require.ErrorIs(t, err, ErrNoMemoryType)
}
