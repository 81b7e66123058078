package raytracer

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies a failure by the phase that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindCreation is any native creation call returning non-success.
	KindCreation
	// KindNegotiation is a device or surface that cannot satisfy the renderer.
	KindNegotiation
	// KindFrame is a failure inside the steady-state frame loop.
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindCreation:
		return "creation"
	case KindNegotiation:
		return "negotiation"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

var (
	ErrNoDevices               = errors.New("no physical devices with vulkan support")
	ErrNoSuitableDevice        = errors.New("no physical device satisfies graphics and presentation requirements")
	ErrIncompleteQueueFamilies = errors.New("queue family selection is incomplete")
	ErrInadequateSurface       = errors.New("surface reports no formats or no present modes")
	ErrMissingExtensions       = errors.New("required extensions are not available")
	ErrMissingLayers           = errors.New("requested validation layers are not available")
	ErrEmptyShader             = errors.New("shader bytecode is empty")
	ErrTimeout                 = errors.New("timed out waiting on the device")
	ErrFrame                   = errors.New("frame submission failed")
	ErrDestroyed               = errors.New("renderer has been destroyed")
)

// Error attaches a Kind and the failing step to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause walk through to the wrapped error.
func (e *Error) Cause() error { return e.Err }

func creationError(op string, err error) error {
	return &Error{Kind: KindCreation, Op: op, Err: err}
}

func negotiationError(op string, err error) error {
	return &Error{Kind: KindNegotiation, Op: op, Err: err}
}

func frameError(op string, err error) error {
	return &Error{Kind: KindFrame, Op: op, Err: err}
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// VulkanError is a non-success vk.Result together with the frame that observed it.
type VulkanError struct {
	Result vk.Result
	Frame  string
}

func (e *VulkanError) Error() string {
	msg := fmt.Sprintf("result %d", e.Result)
	if err := vk.Error(e.Result); err != nil {
		msg = err.Error()
	}
	if e.Frame == "" {
		return fmt.Sprintf("vulkan error: %s (%d)", msg, e.Result)
	}
	return fmt.Sprintf("vulkan error: %s (%d) on %s", msg, e.Result, e.Frame)
}

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts ret into an error, nil on vk.Success.
func NewError(ret vk.Result) error {
	if !isError(ret) {
		return nil
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return &VulkanError{Result: ret}
	}
	return &VulkanError{Result: ret, Frame: newStackFrame(pc).String()}
}

// ResultOf extracts the vk.Result carried in err's chain.
func ResultOf(err error) (vk.Result, bool) {
	var e *VulkanError
	if errors.As(err, &e) {
		return e.Result, true
	}
	return vk.Success, false
}
