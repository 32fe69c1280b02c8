// Command synapsed is the vision-processing coprocessor runtime daemon: it
// loads the configuration store, opens cameras, loads pipelines, binds
// defaults, connects the telemetry bus, drives the board's status
// indicator, samples host metrics, and serves the operator HTTP API — the
// multi-camera, multi-pipeline successor to the teacher's single-camera
// cmd/visionserver.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	bbolt "go.etcd.io/bbolt"

	"github.com/synapse-vision/synapse-core/internal/camerahandler"
	"github.com/synapse-vision/synapse-core/internal/config"
	"github.com/synapse-vision/synapse-core/internal/diskstate"
	"github.com/synapse-vision/synapse-core/internal/hardware"
	"github.com/synapse-vision/synapse-core/internal/httpapi"
	"github.com/synapse-vision/synapse-core/internal/metrics"
	"github.com/synapse-vision/synapse-core/internal/obslog"
	"github.com/synapse-vision/synapse-core/internal/pipeline"
	"github.com/synapse-vision/synapse-core/internal/runtime"
	"github.com/synapse-vision/synapse-core/internal/settings"
	"github.com/synapse-vision/synapse-core/internal/telemetrybus"

	_ "github.com/synapse-vision/synapse-core/pipelines/color"
	_ "github.com/synapse-vision/synapse-core/pipelines/passthrough"
)

func main() {
	baseDir := flag.String("base-dir", ".", "directory containing config/settings.yml and runtime state")
	httpAddr := flag.String("http-addr", ":8080", "operator HTTP API listen address")
	pigpioAddr := flag.String("pigpio-addr", "", "pigpiod address (empty disables board hardware)")
	flag.Parse()

	logger := obslog.New()
	log := obslog.Component(logger, "synapsed")

	store := config.New()
	configPath := config.DefaultConfigPath(*baseDir)
	if err := store.Load(configPath); err != nil {
		log.WithError(err).Fatalf("couldn't load %s", configPath)
	}

	disk, err := diskstate.Open(*baseDir+"/synapsed.db", 0600, &bbolt.Options{})
	if err != nil {
		log.WithError(err).Warn("couldn't open crash-recovery store, continuing without it")
		disk = nil
	} else {
		defer disk.Close()
	}

	cameras := camerahandler.New(obslog.Component(logger, "camerahandler"), camerahandler.NewV4L2Enumerator(), store, camerahandler.OpenGocv)
	if disk != nil {
		cameras.SetDiskState(disk)
	}

	var bus runtime.Bus
	network := store.Network()
	if network.TeamNumber != 0 || network.Name != "" {
		client := &telemetrybus.Client{
			Logger: logger,
			Config: telemetrybus.ClientConfig{Identity: network.Name},
		}
		if err := client.Open(context.Background()); err != nil {
			log.WithError(err).Warn("couldn't open telemetry bus client, continuing without it")
		} else {
			defer client.Close()
			bus = client
		}
	}

	mgr := runtime.New(obslog.Component(logger, "runtime"), store, cameras, nil, bus)
	loader := pipeline.New(obslog.Component(logger, "pipeline"), mgr)
	mgr.SetLoader(loader)
	if disk != nil {
		mgr.SetDiskState(disk)
	}

	var indicators hardware.StatusIndicators = hardware.NoOpHardware{}
	if *pigpioAddr != "" {
		board, err := hardware.New(hardware.Config{Board: &hardware.BoardConfig{PigpioAddr: *pigpioAddr, PWMFrequency: 30000}})
		if err != nil {
			log.WithError(err).Warn("couldn't initialize board hardware, continuing without it")
		} else if si, ok := board.(hardware.StatusIndicators); ok {
			indicators = si
		}
	}
	controller := hardware.NewController(indicators)
	mgr.Subscribe(controller.Listener)

	if err := mgr.Setup(); err != nil {
		log.WithError(err).Fatal("runtime manager setup failed")
	}

	if bus != nil {
		bus.Put("root/version", settings.StringValue("synapsed"))
	}

	publisher := metrics.New(obslog.Component(logger, "metrics"), metrics.NoPlatformGauges{}, func(s metrics.Sample) {
		if bus == nil {
			return
		}
		arr := s.Array()
		values := make([]float64, len(arr))
		copy(values, arr[:])
		bus.Put("root/metrics", settings.FloatArrayValue(values))
	})

	api := &httpapi.Server{
		Addr:    *httpAddr,
		Store:   store,
		Cameras: cameras,
		Loader:  loader,
		Manager: mgr,
		Logger:  obslog.Component(logger, "httpapi"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	go publisher.Run(ctx)
	go func() {
		if err := api.Run(ctx); err != nil {
			log.WithError(err).Warn("http api stopped")
		}
	}()

	mgr.Run(ctx)
}
