//go:build windows

package hid

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows HID backend using SetupAPI and hid.dll through x/sys/windows (no cgo)

var (
	hidDLL   = windows.NewLazySystemDLL("hid.dll")
	setupapi = windows.NewLazySystemDLL("setupapi.dll")

	procHidD_GetHidGuid                  = hidDLL.NewProc("HidD_GetHidGuid")
	procHidD_GetAttributes               = hidDLL.NewProc("HidD_GetAttributes")
	procHidD_GetProductString            = hidDLL.NewProc("HidD_GetProductString")
	procHidD_GetManufacturerString       = hidDLL.NewProc("HidD_GetManufacturerString")
	procHidD_GetPreparsedData            = hidDLL.NewProc("HidD_GetPreparsedData")
	procHidD_FreePreparsedData           = hidDLL.NewProc("HidD_FreePreparsedData")
	procHidP_GetCaps                     = hidDLL.NewProc("HidP_GetCaps")
	procSetupDiGetClassDevsW             = setupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces      = setupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW = setupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiDestroyDeviceInfoList     = setupapi.NewProc("SetupDiDestroyDeviceInfoList")
)

const (
	DIGCF_PRESENT         = 0x00000002
	DIGCF_DEVICEINTERFACE = 0x00000010
	INVALID_HANDLE_VALUE  = ^uintptr(0)
	HIDP_STATUS_SUCCESS   = 0x00110000
)

type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

type HIDD_ATTRIBUTES struct {
	Size          uint32
	VendorID      uint16
	ProductID     uint16
	VersionNumber uint16
}

type SP_DEVICE_INTERFACE_DATA struct {
	CbSize             uint32
	InterfaceClassGuid GUID
	Flags              uint32
	Reserved           uintptr
}

type SP_DEVICE_INTERFACE_DETAIL_DATA struct {
	CbSize     uint32
	DevicePath [1]uint16 // Variable length
}

type HIDP_CAPS struct {
	Usage                     uint16
	UsagePage                 uint16
	InputReportByteLength     uint16
	OutputReportByteLength    uint16
	FeatureReportByteLength   uint16
	Reserved                  [17]uint16
	NumberLinkCollectionNodes uint16
	NumberInputButtonCaps     uint16
	NumberInputValueCaps      uint16
	NumberInputDataIndices    uint16
	NumberOutputButtonCaps    uint16
	NumberOutputValueCaps     uint16
	NumberOutputDataIndices   uint16
	NumberFeatureButtonCaps   uint16
	NumberFeatureValueCaps    uint16
	NumberFeatureDataIndices  uint16
}

func init() {
	register("windows", newWinManager)
}

type winManager struct{}

func newWinManager() (Manager, error) {
	return &winManager{}, nil
}

func (m *winManager) List() ([]Info, error) {
	var hidGuid GUID
	procHidD_GetHidGuid.Call(uintptr(unsafe.Pointer(&hidGuid)))

	devInfo, _, err := procSetupDiGetClassDevsW.Call(
		uintptr(unsafe.Pointer(&hidGuid)),
		0,
		0,
		DIGCF_PRESENT|DIGCF_DEVICEINTERFACE,
	)
	if devInfo == 0 || devInfo == INVALID_HANDLE_VALUE {
		return nil, fmt.Errorf("SetupDiGetClassDevsW failed: %v", err)
	}
	defer procSetupDiDestroyDeviceInfoList.Call(devInfo)

	var devices []Info
	var devInterfaceData SP_DEVICE_INTERFACE_DATA
	devInterfaceData.CbSize = uint32(unsafe.Sizeof(devInterfaceData))

	for i := uint32(0); ; i++ {
		r, _, _ := procSetupDiEnumDeviceInterfaces.Call(
			devInfo,
			0,
			uintptr(unsafe.Pointer(&hidGuid)),
			uintptr(i),
			uintptr(unsafe.Pointer(&devInterfaceData)),
		)
		if r == 0 {
			break
		}

		var requiredSize uint32
		procSetupDiGetDeviceInterfaceDetailW.Call(
			devInfo,
			uintptr(unsafe.Pointer(&devInterfaceData)),
			0,
			0,
			uintptr(unsafe.Pointer(&requiredSize)),
			0,
		)
		if requiredSize == 0 {
			continue
		}

		detailData := make([]byte, requiredSize)
		detail := (*SP_DEVICE_INTERFACE_DETAIL_DATA)(unsafe.Pointer(&detailData[0]))
		// CbSize is the fixed part of the struct: 8 on 64-bit, 6 on 32-bit
		if unsafe.Sizeof(uintptr(0)) == 8 {
			detail.CbSize = 8
		} else {
			detail.CbSize = 6
		}

		r, _, _ = procSetupDiGetDeviceInterfaceDetailW.Call(
			devInfo,
			uintptr(unsafe.Pointer(&devInterfaceData)),
			uintptr(unsafe.Pointer(detail)),
			uintptr(requiredSize),
			0,
			0,
		)
		if r == 0 {
			continue
		}

		pathPtr := &detail.DevicePath[0]
		info, ok := describe(pathPtr)
		if !ok {
			continue
		}
		info.Path = windows.UTF16PtrToString(pathPtr)
		devices = append(devices, info)
	}

	return devices, nil
}

// describe opens the interface without access rights, which Windows allows
// even for FIDO devices held by the system, and reads attributes, strings
// and the top-level usage.
func describe(pathPtr *uint16) (Info, bool) {
	h, err := windows.CreateFile(
		pathPtr,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return Info{}, false
	}
	defer windows.CloseHandle(h)

	var attrs HIDD_ATTRIBUTES
	attrs.Size = uint32(unsafe.Sizeof(attrs))
	r, _, _ := procHidD_GetAttributes.Call(uintptr(h), uintptr(unsafe.Pointer(&attrs)))
	if r == 0 {
		return Info{}, false
	}

	mfr := make([]uint16, 256)
	procHidD_GetManufacturerString.Call(uintptr(h), uintptr(unsafe.Pointer(&mfr[0])), uintptr(len(mfr)*2))
	prod := make([]uint16, 256)
	procHidD_GetProductString.Call(uintptr(h), uintptr(unsafe.Pointer(&prod[0])), uintptr(len(prod)*2))

	info := Info{
		VendorID:     attrs.VendorID,
		ProductID:    attrs.ProductID,
		Manufacturer: windows.UTF16ToString(mfr),
		Product:      windows.UTF16ToString(prod),
	}
	if caps, err := getCaps(h); err == nil {
		info.UsagePage = caps.UsagePage
		info.Usage = caps.Usage
	}
	return info, true
}

func getCaps(h windows.Handle) (HIDP_CAPS, error) {
	var preparsedData uintptr
	r, _, _ := procHidD_GetPreparsedData.Call(uintptr(h), uintptr(unsafe.Pointer(&preparsedData)))
	if r == 0 {
		return HIDP_CAPS{}, fmt.Errorf("HidD_GetPreparsedData failed")
	}
	defer procHidD_FreePreparsedData.Call(preparsedData)

	var caps HIDP_CAPS
	r, _, _ = procHidP_GetCaps.Call(preparsedData, uintptr(unsafe.Pointer(&caps)))
	if r != HIDP_STATUS_SUCCESS {
		return HIDP_CAPS{}, fmt.Errorf("HidP_GetCaps failed: 0x%X", r)
	}
	return caps, nil
}

func (m *winManager) Open(info Info) (Device, error) {
	pathPtr, err := windows.UTF16PtrFromString(info.Path)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0, // Synchronous I/O
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateFile failed: %v", err)
	}

	caps, err := getCaps(h)
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	return &winDevice{
		handle:    h,
		inputLen:  int(caps.InputReportByteLength),
		outputLen: int(caps.OutputReportByteLength),
	}, nil
}

type winDevice struct {
	handle    windows.Handle
	inputLen  int
	outputLen int
}

// Write sends p as one output report. WriteFile wants exactly the report
// length from the descriptor, report id included.
func (d *winDevice) Write(p []byte) (int, error) {
	report := p
	if d.outputLen > len(p) {
		report = make([]byte, d.outputLen)
		copy(report, p)
	}

	var written uint32
	if err := windows.WriteFile(d.handle, report, &written, nil); err != nil {
		return 0, fmt.Errorf("WriteFile failed: %v", err)
	}
	return len(p), nil
}

func (d *winDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	return readWithTimeout(d.read, p, timeout)
}

func (d *winDevice) read(p []byte) (int, error) {
	// ReadFile needs a buffer of the device's input report length
	report := make([]byte, d.inputLen)
	var read uint32
	if err := windows.ReadFile(d.handle, report, &read, nil); err != nil {
		return 0, fmt.Errorf("ReadFile failed: %v", err)
	}
	// Report includes the report id at byte 0
	if read <= 1 {
		return 0, nil
	}
	return copy(p, report[1:read]), nil
}

func (d *winDevice) Close() error {
	return windows.CloseHandle(d.handle)
}
