package dalybms

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	frameSize   = 13
	headerSize  = 4
	dataSize    = 8
	startByte   = 0xa5
	drainBuffer = 256
	maxDrains   = 64
)

// Command codes
const (
	cmdSOC          byte = 0x90
	cmdMosfetStatus byte = 0x93
	cmdStatus       byte = 0x94
	cmdCellVoltages byte = 0x95
	cmdTemperatures byte = 0x96
)

// checksum is the low byte of the sum of all bytes.
func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// buildRequest returns the 13 byte request frame for cmd:
// A5 <address<<4> <cmd> 08 <8 data bytes> <checksum>.
func buildRequest(address int, cmd byte, data []byte) []byte {
	frame := make([]byte, frameSize)
	frame[0] = startByte
	frame[1] = byte(address << 4)
	frame[2] = cmd
	frame[3] = dataSize
	copy(frame[headerSize:headerSize+dataSize], data)
	frame[frameSize-1] = checksum(frame[:frameSize-1])

	return frame
}

// request sends cmd and collects up to maxFrames valid response data
// sections, retrying d.retries times. It returns an error wrapping ErrNoData
// when every attempt came back empty.
func (d *Driver) request(cmd byte, data []byte, maxFrames int) ([][]byte, error) {
	errFactory := errors.New()

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		frames, err := d.exchange(cmd, data, maxFrames)
		switch {
		case err != nil:
			lastErr = err
			d.log.Debug().Err(err).
				Str("command", fmt.Sprintf("%02x", cmd)).
				Int("attempt", attempt).
				Msg("BMS request failed")
		case len(frames) == 0:
			lastErr = ErrNoData
			d.log.Debug().
				Str("command", fmt.Sprintf("%02x", cmd)).
				Int("attempt", attempt).
				Msg("BMS returned no frames")
		default:
			return frames, nil
		}

		if errors.HasCode(lastErr, ErrNotConnected) {
			break
		}
		if attempt < d.retries && d.retryDelay > 0 {
			time.Sleep(d.retryDelay)
		}
	}

	if stderrors.Is(lastErr, ErrNoData) {
		return nil, errFactory.Wrap(ErrNoResponse, lastErr).WithMessage(fmt.Sprintf("command %02x", cmd))
	}

	return nil, errFactory.Wrap(ErrRequestFailed, lastErr).WithMessage(fmt.Sprintf("command %02x failed after %d tries", cmd, d.retries))
}

// exchange performs a single write and read of cmd.
func (d *Driver) exchange(cmd byte, data []byte, maxFrames int) ([][]byte, error) {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return nil, errFactory.New(ErrNotConnected)
	}

	if err := d.drain(); err != nil {
		d.log.Debug().Err(err).Msg("Failed to drain read buffer")
	}

	req := buildRequest(d.address, cmd, data)
	n, err := d.port.Write(req)
	if err != nil {
		return nil, errFactory.Wrap(ErrWriteFailed, err)
	}
	if n != len(req) {
		return nil, errFactory.Wrap(ErrWriteFailed, io.ErrShortWrite)
	}

	var frames [][]byte
	for len(frames) < maxFrames {
		frame, err := d.readFrame()
		if err != nil {
			return nil, errFactory.Wrap(ErrReadFailed, err)
		}
		if frame == nil {
			break
		}
		if len(frame) < frameSize {
			d.log.Debug().
				Str("command", fmt.Sprintf("%02x", cmd)).
				Int("bytes", len(frame)).
				Msg("Partial response frame")
			break
		}
		if sum := checksum(frame[:frameSize-1]); sum != frame[frameSize-1] {
			d.log.Debug().
				Str("command", fmt.Sprintf("%02x", cmd)).
				Str("computed", fmt.Sprintf("%02x", sum)).
				Str("received", fmt.Sprintf("%02x", frame[frameSize-1])).
				Msg("Checksum mismatch")
			continue
		}
		if frame[2] != cmd {
			d.log.Debug().
				Str("command", fmt.Sprintf("%02x", cmd)).
				Str("received", fmt.Sprintf("%02x", frame[2])).
				Msg("Response for another command")
			continue
		}

		frames = append(frames, frame[headerSize:headerSize+dataSize])
	}

	return frames, nil
}

// readFrame reads one frame. It returns nil when nothing arrived before the
// port timed out, and a short slice when the frame was cut off.
func (d *Driver) readFrame() ([]byte, error) {
	buf := make([]byte, frameSize)
	n := 0
	for n < frameSize {
		k, err := d.port.Read(buf[n:])
		n += k
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if k == 0 {
			break
		}
	}

	if n == 0 {
		return nil, nil
	}

	return buf[:n], nil
}

// drain discards stale bytes so they do not mix with the next response.
func (d *Driver) drain() error {
	buf := make([]byte, drainBuffer)
	for i := 0; i < maxDrains; i++ {
		n, err := d.port.Read(buf)
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}

	return nil
}
