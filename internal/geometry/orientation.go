package geometry

// VideoOrientation is the orientation frames are delivered in.
type VideoOrientation int

const (
	VideoPortrait VideoOrientation = iota + 1
	VideoPortraitUpsideDown
	VideoLandscapeRight
	VideoLandscapeLeft
)

func (o VideoOrientation) String() string {
	switch o {
	case VideoPortrait:
		return "portrait"
	case VideoPortraitUpsideDown:
		return "portrait-upside-down"
	case VideoLandscapeRight:
		return "landscape-right"
	case VideoLandscapeLeft:
		return "landscape-left"
	default:
		return "unknown"
	}
}

// IsPortrait reports whether frames in this orientation are taller than wide
// when the sensor is landscape.
func (o VideoOrientation) IsPortrait() bool {
	return o == VideoPortrait || o == VideoPortraitUpsideDown
}

// OrientSize returns the size frames have on screen when a sensor of the
// given native size delivers them in this orientation.
func (o VideoOrientation) OrientSize(native Size) Size {
	landscape := native.Width >= native.Height
	if o.IsPortrait() == landscape {
		return Size{Width: native.Height, Height: native.Width}
	}
	return native
}

// DeviceOrientation is the physical orientation of the device.
type DeviceOrientation int

const (
	DeviceUnknown DeviceOrientation = iota
	DevicePortrait
	DevicePortraitUpsideDown
	DeviceLandscapeLeft
	DeviceLandscapeRight
	DeviceFaceUp
	DeviceFaceDown
)

// VideoOrientation maps a device orientation to a video orientation. The
// landscape cases swap: turning the device left puts the camera's right
// edge up. Flat and unknown orientations have no mapping.
func (o DeviceOrientation) VideoOrientation() (VideoOrientation, bool) {
	switch o {
	case DevicePortrait:
		return VideoPortrait, true
	case DevicePortraitUpsideDown:
		return VideoPortraitUpsideDown, true
	case DeviceLandscapeLeft:
		return VideoLandscapeRight, true
	case DeviceLandscapeRight:
		return VideoLandscapeLeft, true
	default:
		return 0, false
	}
}

// InterfaceOrientation is the orientation the UI is laid out in.
type InterfaceOrientation int

const (
	InterfaceUnknown InterfaceOrientation = iota
	InterfacePortrait
	InterfacePortraitUpsideDown
	InterfaceLandscapeLeft
	InterfaceLandscapeRight
)

var interfaceNames = map[string]InterfaceOrientation{
	"portrait":             InterfacePortrait,
	"portrait-upside-down": InterfacePortraitUpsideDown,
	"landscape-left":       InterfaceLandscapeLeft,
	"landscape-right":      InterfaceLandscapeRight,
}

// ParseInterfaceOrientation maps a name such as "landscape-right" to an
// interface orientation. Unknown names yield InterfaceUnknown.
func ParseInterfaceOrientation(name string) InterfaceOrientation {
	return interfaceNames[name]
}

// VideoOrientation maps an interface orientation one to one.
func (o InterfaceOrientation) VideoOrientation() (VideoOrientation, bool) {
	switch o {
	case InterfacePortrait:
		return VideoPortrait, true
	case InterfacePortraitUpsideDown:
		return VideoPortraitUpsideDown, true
	case InterfaceLandscapeLeft:
		return VideoLandscapeLeft, true
	case InterfaceLandscapeRight:
		return VideoLandscapeRight, true
	default:
		return 0, false
	}
}

// InitialVideoOrientation picks the orientation a session starts in: the
// interface orientation when known, portrait otherwise.
func InitialVideoOrientation(o InterfaceOrientation) VideoOrientation {
	if v, ok := o.VideoOrientation(); ok {
		return v
	}
	return VideoPortrait
}
