// cnc-go is the CNC motion controller host.
// It runs the motion-interruption control core (feedhold, cycle start,
// queue flush, abort), reads control characters and command lines from a
// serial front end, and serves an HTTP/WebSocket monitoring API.
//
// Usage:
//
//	cnc-go [options]
//
// Options:
//
//	-config string   Machine configuration file (YAML)
//	-device string   Serial device path (overrides config)
//	-monitor string  Monitor HTTP address (overrides config)
//	-logfile string  Log file path (default: stderr)
//	-debug           Enable debug logging
//
// Examples:
//
//	# Run with defaults and no serial front end
//	cnc-go
//
//	# Run against a machine config and a USB front end
//	cnc-go -config machine.yaml -device /dev/ttyUSB0
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cnc-go-migration/pkg/config"
	"cnc-go-migration/pkg/control"
	"cnc-go-migration/pkg/cycle"
	"cnc-go-migration/pkg/log"
	"cnc-go-migration/pkg/monitor"
	"cnc-go-migration/pkg/outputs"
	"cnc-go-migration/pkg/reactor"
	"cnc-go-migration/pkg/report"
	"cnc-go-migration/pkg/serial"
)

// requestAdapter marshals the request surface onto the control loop so the
// serial reader and HTTP handlers never touch core state directly.
type requestAdapter struct {
	core *cycle.Core
}

func (a requestAdapter) GetStatus() map[string]interface{} { return a.core.GetStatus() }

func (a requestAdapter) RequestFeedholdDefault() {
	a.core.Dispatch(a.core.RequestFeedholdDefault)
}

func (a requestAdapter) RequestCycleStart() {
	a.core.Dispatch(a.core.RequestCycleStart)
}

func (a requestAdapter) RequestQueueFlush() {
	a.core.Dispatch(a.core.RequestQueueFlush)
}

func (a requestAdapter) RequestFeedholdAbort() {
	// Latched atomically; safe from any goroutine.
	a.core.RequestFeedholdAbort()
}

func main() {
	configFile := flag.String("config", "", "Machine configuration file (YAML)")
	device := flag.String("device", "", "Serial device path (overrides config)")
	monitorAddr := flag.String("monitor", "", "Monitor HTTP address (overrides config)")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *monitorAddr != "" {
		cfg.Monitor.Enable = true
		cfg.Monitor.Addr = *monitorAddr
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	logger := log.GetLogger("cnc")
	if *debug {
		logger.SetLevel(log.DEBUG)
	}
	if cfg.Log.File != "" {
		writer, err := log.NewRotatingFileWriter(log.RotationConfig{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer writer.Close()
		logger.SetWriter(writer)
		logger.SetColorize(false)
	}

	logger.Info("cnc-go starting")

	r := reactor.New()
	broker := report.NewBroker()

	spindle := outputs.NewSpindle(cfg.Spindle.SpinupDelay, logger.WithPrefix("spindle"))
	coolant := outputs.NewCoolant(logger.WithPrefix("coolant"))
	coolant.SetMist(cfg.Coolant.Mist)
	coolant.SetFlood(cfg.Coolant.Flood)

	shutdownCh := make(chan struct{})
	var once sync.Once
	shutdown := func() {
		once.Do(func() { close(shutdownCh) })
	}

	core := cycle.New(cycle.Config{
		ZLift:            cfg.Feedhold.ZLift,
		TraverseRate:     cfg.Motion.TraverseRate,
		SpindlePause:     cfg.Feedhold.SpindlePause,
		CoolantPause:     cfg.Feedhold.CoolantPause,
		DefaultHoldType:  cycle.ParseHoldType(cfg.Feedhold.DefaultType),
		DefaultHoldFinal: cycle.ParseHoldFinal(cfg.Feedhold.DefaultFinal),
		TickPeriod:       cfg.Motion.TickPeriod,
	}, r, spindle, coolant, broker, cycle.Callbacks{
		ProgramStop: func() { logger.Info("program stop") },
		ProgramEnd:  func() { logger.Info("program end") },
		Alarm:       func() { logger.Warn("machine alarm") },
		Shutdown: func() {
			logger.Warn("machine shutdown")
			shutdown()
		},
		Interlock: func() { logger.Warn("safety interlock") },
	}, logger.WithPrefix("cycle"))

	core.Start()
	adapter := requestAdapter{core: core}

	var mon *monitor.Server
	if cfg.Monitor.Enable {
		mon = monitor.New(monitor.Config{
			Addr:       cfg.Monitor.Addr,
			Controller: adapter,
			Reports:    broker,
			Logger:     logger.WithPrefix("monitor"),
		})
		go func() {
			if err := mon.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("monitor server failed")
			}
		}()
		logger.WithField("addr", cfg.Monitor.Addr).Info("monitor enabled")
	}

	var port *serial.Port
	if cfg.Serial.Device != "" {
		scfg := serial.DefaultConfig()
		scfg.Device = cfg.Serial.Device
		scfg.BaudRate = cfg.Serial.Baud

		var err error
		port, err = serial.Open(scfg)
		if err != nil {
			logger.WithError(err).Error("serial open failed")
			os.Exit(1)
		}
		logger.WithField("device", port.Device()).Info("serial front end connected")

		dispatcher := control.NewDispatcher(adapter, func(line string) {
			// Command-line execution lives with the G-code collaborator;
			// the control core only gates it.
			logger.Debug("command line: %s", line)
		}, logger.WithPrefix("control"))

		go func() {
			buf := make([]byte, 256)
			for {
				n, err := port.Read(buf)
				if n > 0 {
					dispatcher.Feed(buf[:n])
				}
				if err != nil {
					if errors.Is(err, serial.ErrTimeout) {
						continue
					}
					if errors.Is(err, io.EOF) || errors.Is(err, serial.ErrClosed) {
						logger.Info("serial front end closed")
					} else {
						logger.WithError(err).Error("serial read failed")
					}
					shutdown()
					return
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received %s, shutting down", sig)
			shutdown()
		case <-shutdownCh:
		}
		r.End()
	}()

	logger.Info("cnc-go ready")
	r.Run()

	if port != nil {
		port.Close()
	}
	if mon != nil {
		mon.Stop()
	}
	logger.Info("cnc-go stopped")
}
