// Command lasso runs a Lasso data-server host over a serial link,
// wiring pkg/config, pkg/cell and the root Host orchestrator together
// the way cmd/canopen wires canopen.ParseEDS, a socketcan bus and the
// node object dictionary - minus the background PDO/SYNC goroutine,
// since spec.md 5 makes the tick callback itself the entire scheduler.
package main

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	lasso "github.com/sleven79/lasso-host"
	"github.com/sleven79/lasso-host/pkg/cell"
	"github.com/sleven79/lasso-host/pkg/celltype"
	"github.com/sleven79/lasso-host/pkg/config"
	"github.com/sleven79/lasso-host/pkg/interp"
)

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	port := flag.StringP("port", "p", "/dev/ttyUSB0", "serial device path")
	iniPath := flag.StringP("config", "c", "", "path to a lasso.ini config file (defaults built in if omitted)")
	baud := flag.IntP("baud", "b", 0, "override config baudrate (0 keeps the config value)")
	verbose := flag.BoolP("verbose", "v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if *iniPath != "" {
		loaded, err := config.Load(*iniPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load config")
		}
		cfg = loaded
	}
	if *baud > 0 {
		cfg.BaudRate = *baud
	}

	entry := logrus.NewEntry(log)

	reg := cell.New(nil)
	speed := make([]byte, 4)
	_, err := reg.Register(celltype.KindFloat, 4, 1, speed, "speed", "m/s", true, false, true, nil, 0, false)
	if err != nil {
		log.WithError(err).Fatal("failed to register speed cell")
	}
	pwm := make([]byte, 4)
	_, err = reg.Register(celltype.KindUint, 2, 2, pwm, "pwm", "duty", true, false, true, nil, 0, false)
	if err != nil {
		log.WithError(err).Fatal("failed to register pwm cell")
	}
	// uptime is read-only and permanent: it cannot be disabled by a
	// SetDataCellStrobe(false), matching spec.md 4.5's "permanent cells
	// always contribute to the strobe frame".
	uptime := make([]byte, 4)
	_, err = reg.Register(celltype.KindUint, 4, 1, uptime, "uptime", "s", false, true, true, nil, 0, false)
	if err != nil {
		log.WithError(err).Fatal("failed to register uptime cell")
	}

	tr, err := openTransport(*port, cfg.BaudRate)
	if err != nil {
		log.WithError(err).Fatalf("failed to open %s", *port)
	}
	defer tr.Close()

	hooks := interp.Hooks{
		OnActivate: func() {
			entry.Info("strobing activated")
		},
		OnControl: func(payload []byte) {
			entry.WithField("bytes", len(payload)).Debug("control passthrough received")
		},
	}

	h, err := lasso.NewHost(entry, cfg, reg, tr.Send, hooks)
	if err != nil {
		log.WithError(err).Fatal("failed to construct host")
	}

	rx := make(chan byte, 256)
	go tr.ReadLoop(rx)

	startedAt := time.Now()
	ticker := time.NewTicker(time.Duration(cfg.TickPeriodMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case b := <-rx:
			if err := h.ReceiveByte(b); err != nil && err != lasso.ErrBusy {
				entry.WithError(err).Debug("receive_byte rejected")
			}
		case <-ticker.C:
			binary.LittleEndian.PutUint32(uptime, uint32(time.Since(startedAt).Seconds()))
			binary.LittleEndian.PutUint32(speed, math.Float32bits(currentSpeed()))
			h.HandleTick()
		}
	}
}

// currentSpeed stands in for whatever sensor read would feed the speed
// cell in a real deployment; this demo only exercises the protocol
// surface, not an actual physical source.
func currentSpeed() float32 {
	return 0
}
