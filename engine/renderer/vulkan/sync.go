package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

// NoFrame marks a swapchain image no frame slot is rendering to.
const NoFrame = -1

// FrameSync owns the per-frame fences and semaphores and remembers which frame
// slot last submitted work targeting each swapchain image.
type FrameSync struct {
	MaxFramesInFlight uint32

	// Signaled when an image has been acquired, waited on by the submit.
	ImageAvailableSemaphores []vk.Semaphore
	// Signaled when the submit completes, waited on by present.
	QueueCompleteSemaphores []vk.Semaphore
	InFlightFences          []*VulkanFence

	// Owning frame slot per swapchain image, NoFrame when idle.
	ImagesInFlight []int
}

// FrameSyncCreate creates maxFramesInFlight fences, created signaled so the
// first wait on each slot returns immediately, and as many semaphore pairs.
func FrameSyncCreate(context *VulkanContext, maxFramesInFlight uint32, imageCount uint32) (*FrameSync, error) {
	fs := &FrameSync{MaxFramesInFlight: maxFramesInFlight}

	var err error
	if fs.ImageAvailableSemaphores, err = memory.Alloc[vk.Semaphore](context.Arena, int(maxFramesInFlight), memory.TagRenderer); err != nil {
		return nil, err
	}
	if fs.QueueCompleteSemaphores, err = memory.Alloc[vk.Semaphore](context.Arena, int(maxFramesInFlight), memory.TagRenderer); err != nil {
		return nil, err
	}
	if fs.InFlightFences, err = memory.Alloc[*VulkanFence](context.Arena, int(maxFramesInFlight), memory.TagRenderer); err != nil {
		return nil, err
	}

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := 0; i < int(maxFramesInFlight); i++ {
		if res := context.Driver.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &fs.ImageAvailableSemaphores[i]); res != vk.Success {
			fs.Destroy(context)
			return nil, resultError("vkCreateSemaphore", res)
		}
		if res := context.Driver.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &fs.QueueCompleteSemaphores[i]); res != vk.Success {
			fs.Destroy(context)
			return nil, resultError("vkCreateSemaphore", res)
		}

		f, err := NewFence(context, true)
		if err != nil {
			fs.Destroy(context)
			return nil, err
		}
		fs.InFlightFences[i] = f
	}

	if err := fs.ResizeImageTable(context, imageCount); err != nil {
		fs.Destroy(context)
		return nil, err
	}
	return fs, nil
}

// ResizeImageTable replaces the image ownership table with imageCount idle
// entries.
func (fs *FrameSync) ResizeImageTable(context *VulkanContext, imageCount uint32) error {
	if err := memory.Free(context.Arena, fs.ImagesInFlight, memory.TagRenderer); err != nil {
		return err
	}
	table, err := memory.Alloc[int](context.Arena, int(imageCount), memory.TagRenderer)
	if err != nil {
		fs.ImagesInFlight = nil
		return err
	}
	fs.ImagesInFlight = table
	fs.ResetImageOwners()
	return nil
}

// ResetImageOwners forgets every image owner.
func (fs *FrameSync) ResetImageOwners() {
	for i := range fs.ImagesInFlight {
		fs.ImagesInFlight[i] = NoFrame
	}
}

// WaitForFrameSlot blocks until the work last submitted from frame has
// finished. It returns false on timeout or failure.
func (fs *FrameSync) WaitForFrameSlot(context *VulkanContext, frame uint32, timeoutNs uint64) bool {
	return fs.InFlightFences[frame].FenceWait(context, timeoutNs)
}

// AcquireNextImage acquires the next swapchain image for frame, signaling the
// frame's image-available semaphore.
func (fs *FrameSync) AcquireNextImage(context *VulkanContext, frame uint32, timeoutNs uint64) (uint32, bool, error) {
	return context.Swapchain.AcquireNextImageIndex(context, timeoutNs, fs.ImageAvailableSemaphores[frame], nil)
}

// WaitForImage waits for the frame slot that last rendered into image, if any.
func (fs *FrameSync) WaitForImage(context *VulkanContext, image uint32, timeoutNs uint64) bool {
	owner := fs.ImagesInFlight[image]
	if owner == NoFrame {
		return true
	}
	return fs.InFlightFences[owner].FenceWait(context, timeoutNs)
}

func (fs *FrameSync) MarkImageInUse(image uint32, frame uint32) {
	fs.ImagesInFlight[image] = int(frame)
}

// ResetFrameFence unsignals the fence of frame right before its submit.
func (fs *FrameSync) ResetFrameFence(context *VulkanContext, frame uint32) error {
	return fs.InFlightFences[frame].FenceReset(context)
}

func (fs *FrameSync) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for i := range fs.ImageAvailableSemaphores {
		if fs.ImageAvailableSemaphores[i] != nil {
			context.Driver.DestroySemaphore(device, fs.ImageAvailableSemaphores[i], context.Allocator)
			fs.ImageAvailableSemaphores[i] = nil
		}
	}
	for i := range fs.QueueCompleteSemaphores {
		if fs.QueueCompleteSemaphores[i] != nil {
			context.Driver.DestroySemaphore(device, fs.QueueCompleteSemaphores[i], context.Allocator)
			fs.QueueCompleteSemaphores[i] = nil
		}
	}
	for i := range fs.InFlightFences {
		if fs.InFlightFences[i] != nil {
			fs.InFlightFences[i].FenceDestroy(context)
		}
	}

	for _, err := range []error{
		memory.Free(context.Arena, fs.ImagesInFlight, memory.TagRenderer),
		memory.Free(context.Arena, fs.InFlightFences, memory.TagRenderer),
		memory.Free(context.Arena, fs.QueueCompleteSemaphores, memory.TagRenderer),
		memory.Free(context.Arena, fs.ImageAvailableSemaphores, memory.TagRenderer),
	} {
		if err != nil {
			core.LogWarn("frame sync: %s", err)
		}
	}

	fs.ImageAvailableSemaphores = nil
	fs.QueueCompleteSemaphores = nil
	fs.InFlightFences = nil
	fs.ImagesInFlight = nil
	fs.MaxFramesInFlight = 0
}
