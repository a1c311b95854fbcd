// Package vulkan holds the Vulkan side of descriptor management: the pool
// allocator backing desc.Manager and the mappings from gfx types.
package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

func ResultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.Incomplete:
		return "VK_INCOMPLETE"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vk.ErrorFragmentation:
		return "VK_ERROR_FRAGMENTATION"
	case vk.ErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// ResultIsSuccess reports whether result is one of the non error codes.
func ResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// ResultError wraps a failing result, nil when the call succeeded.
func ResultError(op string, result vk.Result) error {
	if ResultIsSuccess(result) {
		return nil
	}
	return fmt.Errorf("vulkan %s: %s", op, ResultString(result))
}
