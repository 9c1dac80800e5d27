//go:build spinnaker

/*Package spinnaker drives FLIR/Point Grey cameras through the Spinnaker C SDK.

Build with `-tags spinnaker`; the SDK headers and libSpinnaker_C must be installed.

*/
package spinnaker

/*
#cgo CFLAGS: -I/opt/spinnaker/include/spinc
#cgo LDFLAGS: -L/opt/spinnaker/lib -lSpinnaker_C
#include <stdlib.h>
#include "SpinnakerC.h"

*/
import "C"
import (
	"errors"
	"fmt"
	"image"
	"time"
	"unsafe"

	"github.com/abworrall/hdr-bracket/pkg/camera"
)

const (
	// maxBuff is how large a buffer to allocate for strings read from nodes
	maxBuff = 256
)

func init() {
	camera.Register("spinnaker", func(unmarshal func(interface{}) error) (camera.System, error) {
		return NewSystem()
	})
}

// enrich turns a spinError into a camera.SDKError carrying the SDK's last message
func enrich(code C.spinError, op string) error {
	if code == C.SPINNAKER_ERR_SUCCESS {
		return nil
	}
	buf := (*C.char)(C.malloc(maxBuff))
	defer C.free(unsafe.Pointer(buf))
	n := C.size_t(maxBuff)
	msg := ""
	if C.spinErrorGetLastFullMessage(buf, &n) == C.SPINNAKER_ERR_SUCCESS {
		msg = C.GoString(buf)
	}
	return &camera.SDKError{Op: op, Code: int(code), Msg: msg}
}

// System implements camera.System
type System struct {
	h    C.spinSystem
	list C.spinCameraList
	cams []*Device
}

// NewSystem retrieves the singleton SDK instance
func NewSystem() (*System, error) {
	s := System{}
	if err := enrich(C.spinSystemGetInstance(&s.h), "spinSystemGetInstance"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *System) LibraryVersion() string {
	var v C.spinLibraryVersion
	if err := enrich(C.spinSystemGetLibraryVersion(s.h, &v), "spinSystemGetLibraryVersion"); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d.%d.%d.%d", v.major, v.minor, v._type, v.build)
}

func (s *System) Cameras() ([]camera.Device, error) {
	if s.list == nil {
		if err := enrich(C.spinCameraListCreateEmpty(&s.list), "spinCameraListCreateEmpty"); err != nil {
			return nil, err
		}
	}
	if err := enrich(C.spinSystemGetCameras(s.h, s.list), "spinSystemGetCameras"); err != nil {
		return nil, err
	}

	var n C.size_t
	if err := enrich(C.spinCameraListGetSize(s.list, &n), "spinCameraListGetSize"); err != nil {
		return nil, err
	}

	ret := []camera.Device{}
	for i := 0; i < int(n); i++ {
		d := Device{}
		if err := enrich(C.spinCameraListGet(s.list, C.size_t(i), &d.h), "spinCameraListGet"); err != nil {
			return nil, err
		}
		s.cams = append(s.cams, &d)
		ret = append(ret, &d)
	}
	return ret, nil
}

// Close releases camera handles, the camera list, then the system. Every
// step runs and the errors are joined.
func (s *System) Close() error {
	var errs []error
	for _, d := range s.cams {
		errs = append(errs, enrich(C.spinCameraRelease(d.h), "spinCameraRelease"))
	}
	s.cams = nil
	if s.list != nil {
		errs = append(errs, enrich(C.spinCameraListClear(s.list), "spinCameraListClear"))
		errs = append(errs, enrich(C.spinCameraListDestroy(s.list), "spinCameraListDestroy"))
		s.list = nil
	}
	errs = append(errs, enrich(C.spinSystemReleaseInstance(s.h), "spinSystemReleaseInstance"))
	return errors.Join(errs...)
}

// Device implements camera.Device
type Device struct {
	h     C.spinCamera
	nodes C.spinNodeMapHandle
	proc  C.spinImageProcessor
}

func (d *Device) Init() error {
	if err := enrich(C.spinCameraInit(d.h), "spinCameraInit"); err != nil {
		return err
	}
	if err := enrich(C.spinCameraGetNodeMap(d.h, &d.nodes), "spinCameraGetNodeMap"); err != nil {
		return err
	}
	if err := enrich(C.spinImageProcessorCreate(&d.proc), "spinImageProcessorCreate"); err != nil {
		return err
	}
	return enrich(C.spinImageProcessorSetColorProcessing(d.proc, C.SPINNAKER_COLOR_PROCESSING_ALGORITHM_HQ_LINEAR), "spinImageProcessorSetColorProcessing")
}

func (d *Device) DeInit() error {
	var errs []error
	if d.proc != nil {
		errs = append(errs, enrich(C.spinImageProcessorDestroy(d.proc), "spinImageProcessorDestroy"))
		d.proc = nil
	}
	errs = append(errs, enrich(C.spinCameraDeInit(d.h), "spinCameraDeInit"))
	return errors.Join(errs...)
}

func nodeString(h C.spinNodeHandle) (string, error) {
	buf := (*C.char)(C.malloc(maxBuff))
	defer C.free(unsafe.Pointer(buf))
	n := C.size_t(maxBuff)
	if err := enrich(C.spinNodeToString(h, buf, &n), "spinNodeToString"); err != nil {
		return "", err
	}
	return C.GoString(buf), nil
}

func nodeDisplayName(h C.spinNodeHandle) (string, error) {
	buf := (*C.char)(C.malloc(maxBuff))
	defer C.free(unsafe.Pointer(buf))
	n := C.size_t(maxBuff)
	if err := enrich(C.spinNodeGetDisplayName(h, buf, &n), "spinNodeGetDisplayName"); err != nil {
		return "", err
	}
	return C.GoString(buf), nil
}

// Info walks the DeviceInformation category of the transport layer nodemap.
func (d *Device) Info() (camera.Info, error) {
	var tl C.spinNodeMapHandle
	if err := enrich(C.spinCameraGetTLDeviceNodeMap(d.h, &tl), "spinCameraGetTLDeviceNodeMap"); err != nil {
		return nil, err
	}

	cname := C.CString("DeviceInformation")
	defer C.free(unsafe.Pointer(cname))
	var cat C.spinNodeHandle
	if err := enrich(C.spinNodeMapGetNode(tl, cname, &cat), "spinNodeMapGetNode DeviceInformation"); err != nil {
		return nil, err
	}

	var n C.size_t
	if err := enrich(C.spinCategoryGetNumFeatures(cat, &n), "spinCategoryGetNumFeatures"); err != nil {
		return nil, err
	}

	info := camera.Info{}
	for i := 0; i < int(n); i++ {
		var feat C.spinNodeHandle
		if err := enrich(C.spinCategoryGetFeatureByIndex(cat, C.size_t(i), &feat), "spinCategoryGetFeatureByIndex"); err != nil {
			return info, err
		}
		name, err := nodeDisplayName(feat)
		if err != nil {
			return info, err
		}
		val := "Node not readable"
		if checkNode(feat, "readable") {
			if val, err = nodeString(feat); err != nil {
				return info, err
			}
		}
		info = append(info, camera.InfoField{Name: name, Value: val})
	}
	return info, nil
}

func (d *Device) node(f camera.Feature) (C.spinNodeHandle, error) {
	if _, err := camera.Kind(f); err != nil {
		return nil, err
	}
	cname := C.CString(string(f))
	defer C.free(unsafe.Pointer(cname))
	var h C.spinNodeHandle
	err := enrich(C.spinNodeMapGetNode(d.nodes, cname, &h), "spinNodeMapGetNode "+string(f))
	return h, err
}

// checkNode asks whether a node is "available", "readable" or "writable";
// any SDK error counts as false
func checkNode(h C.spinNodeHandle, what string) bool {
	var b C.bool8_t
	var code C.spinError
	switch what {
	case "available":
		code = C.spinNodeIsAvailable(h, &b)
	case "readable":
		code = C.spinNodeIsReadable(h, &b)
	case "writable":
		code = C.spinNodeIsWritable(h, &b)
	default:
		return false
	}
	return code == C.SPINNAKER_ERR_SUCCESS && b != C.False
}

func (d *Device) Access(f camera.Feature) camera.Access {
	h, err := d.node(f)
	if err != nil || !checkNode(h, "available") {
		return camera.NotAvailable
	}
	r := checkNode(h, "readable")
	w := checkNode(h, "writable")
	switch {
	case r && w:
		return camera.ReadWrite
	case r:
		return camera.ReadOnly
	case w:
		return camera.WriteOnly
	}
	return camera.NotAvailable
}

func (d *Device) GetFloat(f camera.Feature) (float64, error) {
	h, err := d.node(f)
	if err != nil {
		return 0, err
	}
	var v C.double
	err = enrich(C.spinFloatGetValue(h, &v), "spinFloatGetValue "+string(f))
	return float64(v), err
}

func (d *Device) SetFloat(f camera.Feature, v float64) error {
	h, err := d.node(f)
	if err != nil {
		return err
	}
	return enrich(C.spinFloatSetValue(h, C.double(v)), "spinFloatSetValue "+string(f))
}

func (d *Device) FloatRange(f camera.Feature) (float64, float64, error) {
	h, err := d.node(f)
	if err != nil {
		return 0, 0, err
	}
	var min, max C.double
	if err := enrich(C.spinFloatGetMin(h, &min), "spinFloatGetMin "+string(f)); err != nil {
		return 0, 0, err
	}
	err = enrich(C.spinFloatGetMax(h, &max), "spinFloatGetMax "+string(f))
	return float64(min), float64(max), err
}

func (d *Device) GetEnum(f camera.Feature) (string, error) {
	h, err := d.node(f)
	if err != nil {
		return "", err
	}
	var entry C.spinNodeHandle
	if err := enrich(C.spinEnumerationGetCurrentEntry(h, &entry), "spinEnumerationGetCurrentEntry "+string(f)); err != nil {
		return "", err
	}
	buf := (*C.char)(C.malloc(maxBuff))
	defer C.free(unsafe.Pointer(buf))
	n := C.size_t(maxBuff)
	if err := enrich(C.spinEnumerationEntryGetSymbolic(entry, buf, &n), "spinEnumerationEntryGetSymbolic "+string(f)); err != nil {
		return "", err
	}
	return C.GoString(buf), nil
}

func (d *Device) SetEnum(f camera.Feature, v string) error {
	h, err := d.node(f)
	if err != nil {
		return err
	}
	cval := C.CString(v)
	defer C.free(unsafe.Pointer(cval))

	var entry C.spinNodeHandle
	if err := enrich(C.spinEnumerationGetEntryByName(h, cval, &entry), "spinEnumerationGetEntryByName "+string(f)+"="+v); err != nil {
		return err
	}
	if !checkNode(entry, "readable") {
		return &camera.ConfigError{Feature: f, Want: camera.ReadOnly, Have: camera.NotAvailable}
	}
	var iv C.int64_t
	if err := enrich(C.spinEnumerationEntryGetIntValue(entry, &iv), "spinEnumerationEntryGetIntValue "+string(f)); err != nil {
		return err
	}
	return enrich(C.spinEnumerationSetIntValue(h, iv), "spinEnumerationSetIntValue "+string(f))
}

func (d *Device) BeginAcquisition() error {
	return enrich(C.spinCameraBeginAcquisition(d.h), "spinCameraBeginAcquisition")
}

func (d *Device) EndAcquisition() error {
	return enrich(C.spinCameraEndAcquisition(d.h), "spinCameraEndAcquisition")
}

func (d *Device) NextFrame(timeout time.Duration) (camera.Frame, error) {
	f := Frame{proc: d.proc}
	err := enrich(C.spinCameraGetNextImageEx(d.h, C.uint64_t(timeout.Milliseconds()), &f.h), "spinCameraGetNextImageEx")
	if err != nil {
		var sdkErr *camera.SDKError
		if errors.As(err, &sdkErr) && sdkErr.Code == int(C.SPINNAKER_ERR_TIMEOUT) {
			return nil, fmt.Errorf("%v: %w", err, camera.ErrTimeout)
		}
		return nil, err
	}
	return &f, nil
}

// Frame implements camera.Frame
type Frame struct {
	h    C.spinImage
	proc C.spinImageProcessor
}

func (f *Frame) Size() image.Point {
	var w, h C.size_t
	C.spinImageGetWidth(f.h, &w)
	C.spinImageGetHeight(f.h, &h)
	return image.Point{int(w), int(h)}
}

func (f *Frame) Incomplete() bool {
	var b C.bool8_t
	if C.spinImageIsIncomplete(f.h, &b) != C.SPINNAKER_ERR_SUCCESS {
		return true
	}
	return b != C.False
}

func (f *Frame) Status() string {
	var st C.spinImageStatus
	if err := enrich(C.spinImageGetStatus(f.h, &st), "spinImageGetStatus"); err != nil {
		return err.Error()
	}
	buf := (*C.char)(C.malloc(maxBuff))
	defer C.free(unsafe.Pointer(buf))
	n := C.size_t(maxBuff)
	if C.spinImageGetStatusDescription(st, buf, &n) != C.SPINNAKER_ERR_SUCCESS {
		return fmt.Sprintf("image status %d", int(st))
	}
	return C.GoString(buf)
}

// Mono8 converts into a temporary SDK image, and copies that out row by row.
func (f *Frame) Mono8() (*image.Gray, error) {
	var conv C.spinImage
	if err := enrich(C.spinImageCreateEmpty(&conv), "spinImageCreateEmpty"); err != nil {
		return nil, err
	}
	defer C.spinImageDestroy(conv)

	if err := enrich(C.spinImageProcessorConvert(f.proc, f.h, conv, C.PixelFormat_Mono8), "spinImageProcessorConvert"); err != nil {
		return nil, err
	}

	var w, h, stride C.size_t
	var data unsafe.Pointer
	if err := enrich(C.spinImageGetWidth(conv, &w), "spinImageGetWidth"); err != nil {
		return nil, err
	}
	if err := enrich(C.spinImageGetHeight(conv, &h), "spinImageGetHeight"); err != nil {
		return nil, err
	}
	if err := enrich(C.spinImageGetStride(conv, &stride), "spinImageGetStride"); err != nil {
		return nil, err
	}
	if err := enrich(C.spinImageGetData(conv, &data), "spinImageGetData"); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, int(w), int(h)))
	src := unsafe.Slice((*byte)(data), int(stride)*int(h))
	for y := 0; y < int(h); y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+int(w)], src[y*int(stride):])
	}
	return img, nil
}

func (f *Frame) Release() error {
	return enrich(C.spinImageRelease(f.h), "spinImageRelease")
}
