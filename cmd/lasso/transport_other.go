//go:build !linux

package main

import "errors"

// transport is a stub on non-Linux platforms: goserial's termios ioctls
// are Linux-only (see transport_linux.go), and this command has no
// portable serial backend to fall back to.
type transport struct{}

func openTransport(path string, baud int) (*transport, error) {
	return nil, errors.New("lasso: serial transport requires linux")
}

func (t *transport) Send(chunk []byte) error { return errors.New("lasso: no transport") }

func (t *transport) ReadLoop(rx chan<- byte) {}

func (t *transport) Close() error { return nil }
