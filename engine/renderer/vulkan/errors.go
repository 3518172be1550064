package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

var (
	ErrNoVulkanDevice            = errors.New("no devices which support Vulkan were found")
	ErrNoSuitableDevice          = errors.New("no physical devices were found which meet the requirements")
	ErrNoDepthFormat             = errors.New("failed to find a supported depth format")
	ErrNoMemoryType              = errors.New("unable to find a suitable memory type")
	ErrMissingLayer              = errors.New("required validation layer is missing")
	ErrInvalidCommandBufferState = errors.New("invalid command buffer state")
	ErrInvalidUsageFlags         = errors.New("command buffer usage flags are mutually exclusive")
	ErrRecreationInProgress      = errors.New("swapchain recreation already in progress")
)

// resultError wraps a failed Vulkan call into an error naming the call.
func resultError(call string, result vk.Result) error {
	return fmt.Errorf("%s failed: %s", call, VulkanResultString(result, true))
}
