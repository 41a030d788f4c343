package dalybms

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	baudRate        = 9600
	portReadTimeout = 100 * time.Millisecond
)

// Port is the byte stream to the BMS. *serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
}

// PortOpener opens the port at path.
type PortOpener func(path string) (Port, error)

// OpenSerial opens a serial device with the Daly UART settings (9600 8N1).
func OpenSerial(path string) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        baudRate,
		ReadTimeout: portReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}
