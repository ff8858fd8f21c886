//go:build linux

package main

import (
	serial "github.com/daedaluz/goserial"
)

// transport wraps a real termios serial port, the demo counterpart to
// cmd/canopen's NewSocketcanBus - goserial only builds on Linux, so the
// rest of this command (and every package it imports) stays portable
// while this one file carries the termios dependency.
type transport struct {
	port *serial.Port
}

func openTransport(path string, baud int) (*transport, error) {
	port, err := serial.Open(path, serial.NewOptions())
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetCustomSpeed(uint32(baud))
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, err
	}
	return &transport{port: port}, nil
}

// Send implements lasso.SendFunc. goserial's Write is a blocking
// syscall.Write, so there is no "would block" case to surface as
// ErrBusy here - a non-blocking transport would translate EAGAIN to
// lasso.ErrBusy instead of returning it as a hard error.
func (t *transport) Send(chunk []byte) error {
	_, err := t.port.Write(chunk)
	return err
}

// ReadLoop blocks on port reads and forwards each byte to rx, standing
// in for the receive_byte ISR spec.md 5 describes as "typically also
// an ISR in the embedded context" - here, a dedicated goroutine feeding
// the tick loop's select instead.
func (t *transport) ReadLoop(rx chan<- byte) {
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			rx <- b
		}
	}
}

func (t *transport) Close() error {
	return t.port.Close()
}
