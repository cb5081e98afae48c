package vulkan

import (
	"testing"
	"unsafe"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_2"
	mock_driver "github.com/vkngwrapper/core/v2/driver/mocks"
	"github.com/vkngwrapper/core/v2/mocks"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
)

type addressQuerier struct{}

func (q addressQuerier) GetBufferDeviceAddress(o core1_2.BufferDeviceAddressInfo) (uint64, error) {
	return 1, nil
}

func mockDevice(ctrl *gomock.Controller, version common.APIVersion, extensions ...string) *mocks.MockDevice {
	coreDriver := mock_driver.DriverForVersion(ctrl, version)
	coreDriver.EXPECT().LoadProcAddr(gomock.Any()).Return(unsafe.Pointer(nil)).AnyTimes()

	device := mocks.EasyMockDevice(ctrl, coreDriver)
	device.EXPECT().IsDeviceExtensionActive(gomock.Any()).DoAndReturn(func(name string) bool {
		for _, extension := range extensions {
			if extension == name {
				return true
			}
		}
		return false
	}).AnyTimes()

	return device
}

func TestExtensionsNew_NoExtensions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	device := mockDevice(ctrl, common.Vulkan1_0)

	extension := NewExtensionData(device, nil)

	require.Equal(t, &ExtensionData{}, extension)
}

func TestExtensionsNew_Core1_2(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	device := mockDevice(ctrl, common.Vulkan1_2)

	extension := NewExtensionData(device, nil)

	require.Equal(t, &ExtensionData{
		BufferDeviceAddress: core1_2.PromoteDevice(device),
	}, extension)
}

func TestExtensionsNew_BufferDeviceAddressExtension(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	device := mockDevice(ctrl, common.Vulkan1_0, khr_buffer_device_address.ExtensionName)

	extension := NewExtensionData(device, nil)

	require.NotNil(t, extension.BufferDeviceAddress)
}

func TestExtensionsNew_Override(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	device := mockDevice(ctrl, common.Vulkan1_2)

	extension := NewExtensionData(device, addressQuerier{})

	require.Equal(t, &ExtensionData{
		BufferDeviceAddress: addressQuerier{},
	}, extension)
}
