package transport

import (
	"io"

	"github.com/pkg/errors"

	"github.com/nwtnni/hoplite-go/cmn"
)

// SendObject implements the sender side of the wire framing: it writes
// the header, copies exactly size bytes from payload onto conn, and
// waits for the 3-byte ack. The caller owns conn's lifecycle (dialing and
// closing); SendObject only writes and reads the one frame sequence.
func SendObject(conn io.ReadWriter, id cmn.ObjectID, size int64, payload io.Reader) error {
	if err := writeHeader(conn, id, size); err != nil {
		return err
	}
	n, err := io.CopyN(conn, payload, size)
	if err != nil {
		return errors.Wrapf(err, "transport: send %s: wrote %d/%d bytes", id, n, size)
	}
	if err := readAck(conn); err != nil {
		return errors.Wrapf(err, "transport: send %s", id)
	}
	return nil
}
