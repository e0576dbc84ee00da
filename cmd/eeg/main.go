package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/eeg.report/internal/api"
	"github.com/banshee-data/eeg.report/internal/config"
	"github.com/banshee-data/eeg.report/internal/db"
	"github.com/banshee-data/eeg.report/internal/ingest"
	"github.com/banshee-data/eeg.report/internal/serialmux"
	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
	"github.com/banshee-data/eeg.report/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to JSON configuration file (defaults are built in)")
	port          = flag.String("port", "", "Serial port the headset is attached to (overrides config)")
	baud          = flag.Int("baud", 0, "Serial baud rate (overrides config; default 9600)")
	listen        = flag.String("listen", ":8080", "Listen address")
	devMode       = flag.Bool("dev", false, "Replay a fixture instead of opening a serial port")
	fixture       = flag.String("fixture", "", "Byte capture replayed in dev mode (default: synthetic demo stream)")
	disableSerial = flag.Bool("disable-serial", false, "Run without any serial input")
	listPorts     = flag.Bool("list-ports", false, "List available serial ports and exit")
	dbPathFlag    = flag.String("db", "", "Path to the capture database (overrides config)")
	record        = flag.Bool("record", true, "Record decoded samples to the database")
	versionFlag   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	// the migrate subcommand has its own flags
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(os.Args[2:]); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("eeg.report %s (git %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig(*configFile, flagOverrides())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
	log.Printf("Graceful shutdown complete")
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", config.DefaultDBPath, "Path to the capture database")
	fs.BoolVar(&db.DevMode, "dev", false, "Read migrations from "+db.MigrationsDir)
	fs.Parse(args)
	return db.RunMigrateCommand(os.Stdout, fs.Args(), *dbPath)
}

// overrides holds the command-line values that take precedence over the
// config file. Zero values mean "not given".
type overrides struct {
	port      string
	baud      int
	dbPath    string
	recordSet bool
	record    bool
}

func flagOverrides() overrides {
	o := overrides{port: *port, baud: *baud, dbPath: *dbPathFlag, record: *record}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "record" {
			o.recordSet = true
		}
	})
	return o
}

// loadConfig reads path, or starts from the built-in defaults when path is
// empty, then applies o.
func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg := config.EmptyConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if o.port != "" {
		cfg.SetSerialPort(o.port)
	}
	if o.baud != 0 {
		cfg.SetBaudRate(o.baud)
	}
	if o.dbPath != "" {
		cfg.SetDBPath(o.dbPath)
	}
	if o.recordSet {
		cfg.SetRecord(o.record)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSerial picks the sample source: nothing, a replayed fixture, or the
// configured port. label names the source in metrics and sessions.
func openSerial(cfg *config.Config, dev, disabled bool, fixturePath string) (m serialmux.SerialMuxInterface, label string, err error) {
	muxOpts := []serialmux.Option{
		serialmux.WithSubscriberBuffer(cfg.GetSubscriberBuffer()),
		serialmux.WithFramerOptions(
			thinkgear.WithMaxBuffer(cfg.GetMaxBufferBytes()),
			thinkgear.WithReporter(func(err error) { log.Printf("framer: %v", err) }),
		),
	}

	switch {
	case disabled:
		return serialmux.NewDisabledSerialMux(), "disabled", nil

	case dev:
		data := serialmux.DemoFixture()
		label = "demo"
		if fixturePath != "" {
			if data, err = os.ReadFile(fixturePath); err != nil {
				return nil, "", fmt.Errorf("failed to read fixture: %w", err)
			}
			label = fixturePath
		}
		// the demo stream holds one second of headset output
		return serialmux.NewMockSerialMux(data, time.Second, muxOpts...), label, nil

	default:
		path := cfg.GetSerialPort()
		if path == "" {
			return nil, "", errors.New("no serial port configured: use -port, -dev or -disable-serial")
		}
		sm, err := serialmux.NewRealSerialMux(path, cfg.GetPortOptions(), muxOpts...)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open serial port %s: %w", path, err)
		}
		return sm, path, nil
	}
}

func run(cfg *config.Config) error {
	eegSerial, source, err := openSerial(cfg, *devMode, *disableSerial, *fixture)
	if err != nil {
		return err
	}
	defer eegSerial.Close()
	log.Printf("reading samples from %s", source)

	store := series.NewStore(cfg.GetSeriesCapacity(), cfg.GetRawSeriesCapacity())

	var (
		database *db.DB
		session  *db.Session
	)
	consumerOpts := []ingest.Option{}
	if cfg.GetRecord() {
		database, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		session, err = database.StartSession(context.Background(), source, cfg.GetPortOptions().BaudRate)
		if err != nil {
			return err
		}
		log.Printf("recording session %s to %s", session.ID, database.Path())
		consumerOpts = append(consumerOpts,
			ingest.WithRecorder(database, session.ID),
			ingest.WithFlushInterval(cfg.GetFlushInterval()),
		)
	}
	consumer := ingest.NewConsumer(store, consumerOpts...)

	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"source": source}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		thinkgear.NewCollector(thinkgear.StatsFunc(func() thinkgear.Stats { return eegSerial.Stats().Framer }), labels),
		serialmux.NewCollector(eegSerial, labels),
	)

	// Create a wait group for the HTTP server, serial monitor, and ingest routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eegSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
		// without input there is nothing left to serve
		stop()
	}()

	// subscribe before the consumer starts so no sample is missed
	id, samples := eegSerial.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer eegSerial.Unsubscribe(id)
		if err := consumer.Run(ctx, samples); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ingest stopped: %v", err)
		}
		log.Printf("ingest routine terminated: %s", consumer.Stats())
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, eegSerial, consumer, database, cfg).ServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		eegSerial.AttachAdminRoutes(mux)
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if session != nil {
		if err := database.EndSession(context.Background(), session.ID); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
	return nil
}
