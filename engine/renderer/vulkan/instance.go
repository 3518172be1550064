package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

const (
	validationLayerName                 = "VK_LAYER_KHRONOS_validation"
	portabilityEnumerationExtensionName = "VK_KHR_portability_enumeration"

	// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	instanceCreateEnumeratePortability = 0x00000001
)

// requiredInstanceExtensions lists the surface extensions of the platform plus
// what the debug messenger and portability drivers need.
func requiredInstanceExtensions(platformExtensions []string, validation bool) []string {
	extensions := []string{"VK_KHR_surface"} // Generic surface extension
	for _, name := range platformExtensions {
		if !slices.Contains(extensions, name) {
			extensions = append(extensions, name)
		}
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			portabilityEnumerationExtensionName,
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	return extensions
}

// createInstance creates the instance and, with validation enabled, verifies
// the validation layer and installs the debug report callback.
func createInstance(context *VulkanContext, appName string, platformExtensions []string, validation bool) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Kiwi Engine"),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if runtime.GOOS == "darwin" {
		createInfo.Flags |= instanceCreateEnumeratePortability
	}

	extensions := requiredInstanceExtensions(platformExtensions, validation)
	core.LogDebug("Required extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)

	var layers []string
	if validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		layers = []string{validationLayerName}
		if err := verifyInstanceLayers(context, layers); err != nil {
			return err
		}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := context.Driver.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		return resultError("vkCreateInstance", res)
	}
	core.LogInfo("Vulkan Instance created.")

	if validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		if res := context.Driver.CreateDebugReportCallback(context.Instance, &debugCreateInfo, context.Allocator, &context.debugMessenger); res != vk.Success {
			return resultError("vkCreateDebugReportCallbackEXT", res)
		}
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func verifyInstanceLayers(context *VulkanContext, required []string) error {
	scope := context.Arena.Scratch()
	defer scope.Close()

	var count uint32
	if res := context.Driver.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	availableLayers, err := memory.ScratchAlloc[vk.LayerProperties](scope, int(count))
	if err != nil {
		return err
	}
	if res := context.Driver.EnumerateInstanceLayerProperties(&count, availableLayers); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}

	for _, name := range required {
		core.LogInfo("Searching for layer: %s...", name)
		found := false
		for j := 0; j < int(count); j++ {
			if VulkanString(availableLayers[j].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrMissingLayer, name)
		}
		core.LogInfo("Found.")
	}
	return nil
}

// dbgCallbackFunc routes validation messages to the engine logger. It never
// asks the driver to abort the call.
func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func destroyInstance(context *VulkanContext) {
	if context.debugMessenger != nil {
		core.LogDebug("Destroying Vulkan debugger...")
		context.Driver.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = nil
	}
	if context.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		context.Driver.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
}
