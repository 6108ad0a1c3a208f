package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/ac-controller/internal/config"
	"github.com/sweeney/ac-controller/internal/controller"
	"github.com/sweeney/ac-controller/internal/gpio"
	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/ir"
	"github.com/sweeney/ac-controller/internal/logger"
	"github.com/sweeney/ac-controller/internal/mqtt"
	"github.com/sweeney/ac-controller/internal/sensor"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/web"
)

const (
	inboxCapacity   = 32
	shutdownTimeout = 5 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the control loop until SIGINT or SIGTERM. The HTTP status server
and the MQTT link run alongside it.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	for _, fs := range []*cobra.Command{rootCmd, runCmd} {
		fs.Flags().String("broker", "", "MQTT broker address (overrides config)")
		fs.Flags().String("http", "", `HTTP status address (overrides config, "off" disables)`)
		fs.Flags().String("device-id", "", "device identifier used in MQTT topics")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	for flag, key := range map[string]string{"broker": "broker", "http": "http.addr", "device-id": "device_id"} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			mustBind(v, key, f)
		}
	}
	if f := cmd.Flags().Lookup("http"); f != nil && f.Value.String() == "off" {
		v.Set("http.addr", "")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return run(ctx, cfg, log)
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	rx, err := ir.OpenReceiver(cfg.IR.RXDevice, cfg.Layout(), cfg.Signal.Protocol)
	if err != nil {
		return fmt.Errorf("init ir receiver: %w", err)
	}
	defer rx.Close()
	tx, err := ir.OpenTransmitter(cfg.IR.TXDevice)
	if err != nil {
		return fmt.Errorf("init ir transmitter: %w", err)
	}
	defer tx.Close()
	sens, err := sensor.NewIIO(cfg.Sensor.IIODevice)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	button, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.ButtonPin, gpio.Bias(cfg.GPIO.Bias))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer button.Close()

	in := inbox.New(inboxCapacity)
	link := mqtt.NewLink(mqtt.LinkConfig{
		Broker:     cfg.Broker,
		DeviceID:   cfg.DeviceID,
		Retry:      cfg.MQTT.Retry,
		BufferSize: cfg.MQTT.Buffer,
	}, in, log.Named("mqtt"))
	defer link.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:   cfg.DeviceID,
		CycleMs:    cfg.Cycle.Milliseconds(),
		DebounceMs: cfg.Debounce.Milliseconds(),
		IntervalMs: cfg.Policy.Interval.Milliseconds(),
		Broker:     cfg.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
		Layout:     cfg.Signal.Layout,
		Thresholds: cfg.Thresholds(),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		return err
	}
	deps := controller.Deps{
		Store:       b.store,
		Receiver:    rx,
		Transmitter: tx,
		Sensor:      sens,
		Button:      button,
		Inbox:       in,
		Publisher:   link,
		Link:        link,
		Tracker:     tracker,
		Log:         log.Named("controller"),
	}
	if b.journal != nil {
		deps.Journal = b.journal
	}
	ctrl, err := controller.New(controller.Config{
		Debounce:       cfg.Debounce,
		ActiveEdge:     cfg.Edge(),
		Thresholds:     cfg.Thresholds(),
		Interval:       cfg.Policy.Interval,
		ActivateSlot:   cfg.Policy.ActivateSlot,
		DeactivateSlot: cfg.Policy.DeactivateSlot,
		CarrierHz:      cfg.Signal.CarrierHz,
		Vocabulary:     vocab,
	}, deps)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		var events web.EventSource
		if b.journal != nil {
			events = b.journal
		}
		srv := web.New(cfg.HTTP.Addr, tracker, in, events, log.Named("http"))
		g.Go(func() error {
			log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Infow("started",
		"device_id", cfg.DeviceID,
		"broker", cfg.Broker,
		"cycle", cfg.Cycle,
		"debounce", cfg.Debounce,
		"interval", cfg.Policy.Interval,
		"store", cfg.Store.Driver,
	)

	ticker := time.NewTicker(cfg.Cycle)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g.Go(func() error {
		defer cancel()
		return runLoop(gctx, ctrl, log, time.Now, ticker.C, sigCh)
	})
	return g.Wait()
}

// loopController is the part of the controller the run loop drives.
type loopController interface {
	Start(ctx context.Context, now time.Time)
	Cycle(ctx context.Context, now time.Time)
	Stop(ctx context.Context, now time.Time, reason string)
}

// runLoop runs one control cycle per tick until a signal arrives or ctx is
// cancelled.
func runLoop(ctx context.Context, ctrl loopController, log *logger.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctrl.Start(ctx, now())

	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			ctrl.Stop(ctx, now(), signalName(s))
			return nil

		case <-ctx.Done():
			ctrl.Stop(context.Background(), now(), "context cancelled")
			return nil

		case <-tick:
			ctrl.Cycle(ctx, now())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
