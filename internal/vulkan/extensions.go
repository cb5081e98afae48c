package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	khr_buffer_device_address_shim "github.com/vkngwrapper/extensions/v2/khr_buffer_device_address/shim"
)

// BufferAddressQuerier resolves the device address of a buffer. It is satisfied by
// core1_2.Device and by the khr_buffer_device_address shim.
type BufferAddressQuerier interface {
	GetBufferDeviceAddress(o core1_2.BufferDeviceAddressInfo) (uint64, error)
}

// ExtensionData records which device capabilities are in use for the renderer
type ExtensionData struct {
	BufferDeviceAddress BufferAddressQuerier
}

// NewExtensionData resolves device capabilities from the device's version and active extensions.
// A non-nil override replaces the buffer address resolution.
func NewExtensionData(device core1_0.Device, override BufferAddressQuerier) *ExtensionData {
	data := &ExtensionData{}

	if override != nil {
		data.BufferDeviceAddress = override
		return data
	}

	device12 := core1_2.PromoteDevice(device)
	if device12 != nil {
		// Core 1.2 active - buffer device addresses are core
		data.BufferDeviceAddress = device12
	}

	// khr_buffer_device_address if core 1.2 is not active
	if data.BufferDeviceAddress == nil && device.IsDeviceExtensionActive(khr_buffer_device_address.ExtensionName) {
		extension := khr_buffer_device_address.CreateExtensionFromDevice(device)
		data.BufferDeviceAddress = khr_buffer_device_address_shim.NewShim(extension, device)
	}

	return data
}
