// Command daqd wires the Control Block, Sample FIFO, Sample Source,
// Sample Reader, and Reader Loop into a running daemon, with listeners
// for a DSD/NDS recording writer, a spike logger, and an optional Temp
// Spooler fan-out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"hz.tools/daq"
	"hz.tools/daq/control"
	"hz.tools/daq/dsd"
	"hz.tools/daq/emulate"
	"hz.tools/daq/fifo"
	"hz.tools/daq/listener"
	"hz.tools/daq/loop"
	"hz.tools/daq/reader"
	"hz.tools/daq/source"
	"hz.tools/daq/spike"
	"hz.tools/daq/spool"
	"hz.tools/rf"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: daqd CONFIG.yaml")
		os.Exit(1)
	}

	logger := log.Default()

	cfg, err := LoadConfig(os.Args[1])
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("daqd exiting", "err", err)
	}
}

func run(cfg *Config, logger *log.Logger) error {
	block, spikeDet, err := setupControl(cfg, logger)
	if err != nil {
		return err
	}

	f := fifo.New(4096)
	src := source.NewFifoSource(f, 50)
	rdr := reader.New(src, 200*time.Millisecond, 256)
	l := loop.New(rdr, src, logger)

	closers, err := wireListeners(cfg, l, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("closing listener", "err", err)
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The emulated producer is started only for the in-process Control
	// Block; an attached external region implies a real producer is
	// already running elsewhere.
	if cfg.ControlBlockPath == "" {
		producer := emulate.New(emulate.Config{
			Block:  block,
			Fifo:   f,
			Spike:  spikeDet,
			Logger: logger,
		})
		go func() {
			if err := producer.Run(ctx); err != nil {
				logger.Error("producer stopped", "err", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		l.Stop()
	}()

	return l.Run()
}

func setupControl(cfg *Config, logger *log.Logger) (control.Block, *spike.Detector, error) {
	var block control.Block
	if cfg.ControlBlockPath != "" {
		b, err := control.Attach(cfg.ControlBlockPath)
		if err != nil {
			return nil, nil, fmt.Errorf("daqd: attaching control block: %w", err)
		}
		block = b
	} else {
		block = control.NewInProcess()
	}

	block.SetSamplingRate(rf.Hz(cfg.SamplingRateHz))

	for _, ch := range cfg.Channels {
		block.SetChannelEnabled(ch.ID, true)
		block.SetChannelRange(ch.ID, ch.RangeID)
		if ch.Spike != nil {
			block.SetSpikeConfig(ch.ID, ch.Spike.toParams())
		}
	}

	logger.Info("control block ready", "channels", len(cfg.Channels), "rate_hz", cfg.SamplingRateHz)
	return block, spike.New(block), nil
}

func wireListeners(cfg *Config, l *loop.Loop, logger *log.Logger) ([]func() error, error) {
	var closers []func() error

	allChannels := make(map[uint8]struct{}, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		allChannels[ch.ID] = struct{}{}
	}

	if cfg.RecordPath != "" {
		f, err := os.Create(cfg.RecordPath)
		if err != nil {
			return nil, fmt.Errorf("daqd: opening record file: %w", err)
		}
		w, err := dsd.NewWriter(f, dsd.Float32)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("daqd: starting stream writer: %w", err)
		}
		l.AddListener(&listener.Func{
			Channels: allChannels,
			Fn: func(s daq.Sample) {
				if err := w.WriteSample(s); err != nil {
					logger.Error("dsd write failed", "err", err)
				}
			},
		})
		closers = append(closers, func() error {
			if err := w.End(); err != nil {
				return err
			}
			return f.Close()
		})
	}

	l.AddListener(&listener.Func{
		Channels: allChannels,
		Fn: func(s daq.Sample) {
			if s.Spike {
				logger.Warn("spike", "channel", s.ChannelID, "scan", s.ScanIndex, "data", s.Data)
			}
		},
	})

	if cfg.SpoolDir != "" {
		sp, err := spool.New[daq.Sample](cfg.SpoolDir, cfg.SpoolBatchSize)
		if err != nil {
			return nil, fmt.Errorf("daqd: starting spooler: %w", err)
		}
		l.AddListener(&listener.Func{
			Channels: allChannels,
			Fn: func(s daq.Sample) {
				if err := sp.Spool([]daq.Sample{s}); err != nil {
					logger.Error("spool failed", "err", err)
				}
			},
		})
		closers = append(closers, sp.Close)
	}

	return closers, nil
}

// vim: foldmethod=marker
