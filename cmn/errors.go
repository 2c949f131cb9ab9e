package cmn

import "github.com/pkg/errors"

// Sentinel errors for failures that are surfaced rather than fatal: an
// unknown object, a busy outbound slot on the control plane, and a
// protocol violation on the bulk wire. Callers compare with errors.Is through
// github.com/pkg/errors, which preserves the underlying sentinel across
// Wrap/Wrapf.
var (
	// ErrObjectUnknown means a directory Lookup returned no owner for an
	// object the caller needed, or a blob store holds no blob under the
	// id. Returned rather than treated as fatal, so the caller can decide
	// to block-subscribe instead.
	ErrObjectUnknown = errors.New("cmn: object unknown to directory")

	// ErrBusy is control.Plane's internal signal that the per-object
	// outbound cap is already held; it never escapes to a caller as a Go
	// error, only as PullReply.OK == false.
	ErrBusy = errors.New("cmn: object busy, retry")

	// ErrProtocol covers ack mismatches and size mismatches on the bulk
	// wire: fatal to the one transfer, not to the process.
	ErrProtocol = errors.New("cmn: bulk transport protocol violation")
)

// IsObjectUnknown reports whether err (possibly wrapped) is ErrObjectUnknown.
func IsObjectUnknown(err error) bool { return errors.Is(err, ErrObjectUnknown) }

// IsProtocolError reports whether err (possibly wrapped) is ErrProtocol.
func IsProtocolError(err error) bool { return errors.Is(err, ErrProtocol) }
