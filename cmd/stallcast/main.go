package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"stallcast/internal/api"
	"stallcast/internal/calendar"
	"stallcast/internal/export"
	"stallcast/internal/models"
	"stallcast/internal/predict"
	"stallcast/internal/sched"
	"stallcast/internal/store"
)

var defaultLocation = models.Location{
	ID:          "default",
	Name:        "Office Restroom",
	TotalStalls: 3,
	IsDefault:   true,
}

type cli struct {
	DB             string `help:"Path to SQLite database." default:"data/stallcast.db" env:"STALLCAST_DB"`
	Timezone       string `help:"IANA timezone used for slot keys." default:"Asia/Shanghai" env:"STALLCAST_TZ"`
	RetentionDays  int    `help:"Days of raw observations kept before compaction." default:"90" env:"STALLCAST_RETENTION_DAYS"`
	CompactEvery   int    `help:"Run compaction after this many appends." default:"50" env:"STALLCAST_COMPACT_EVERY"`
	HolidayFeedURL string `help:"Holiday schedule feed URL; empty disables refresh." env:"STALLCAST_HOLIDAY_FEED" optional:""`

	Serve    serveCmd    `cmd:"" default:"withargs" help:"Run the HTTP server."`
	Compact  compactCmd  `cmd:"" help:"Run one compaction sweep and exit."`
	Export   exportCmd   `cmd:"" help:"Write an export bundle to stdout and exit."`
	Progress progressCmd `cmd:"" help:"Print data-collection progress and exit."`
}

// app carries the wired-up dependencies into the command Run methods.
type app struct {
	store *store.Store
	cal   *calendar.Calendar
	loc   *time.Location
	flags *cli
}

func main() {
	var flags cli
	ctx := kong.Parse(&flags,
		kong.Name("stallcast"),
		kong.Description("Crowd-sourced restroom occupancy tracking and availability forecasting."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	loc, err := time.LoadLocation(flags.Timezone)
	if err != nil {
		log.Printf("Warning: could not load timezone %s, using UTC: %v", flags.Timezone, err)
		loc = time.UTC
	}

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	policy := store.CompactionPolicy{
		Retention: time.Duration(flags.RetentionDays) * 24 * time.Hour,
		Cadence:   flags.CompactEvery,
	}
	st := store.New(db, loc, policy)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	// Seed a starting location on first boot only, so user edits survive
	// restarts.
	locations, err := st.GetLocations()
	if err != nil {
		log.Fatalf("list locations: %v", err)
	}
	if len(locations) == 0 {
		defaultLocation.CreatedAt = time.Now().UTC()
		if err := st.UpsertLocation(defaultLocation); err != nil {
			log.Fatalf("seed default location: %v", err)
		}
		log.Println("default location seeded")
	}

	ctx.FatalIfErrorf(ctx.Run(&app{
		store: st,
		cal:   calendar.Default(),
		loc:   loc,
		flags: &flags,
	}))
}

type serveCmd struct {
	Port            string        `help:"HTTP server port." default:"8080" env:"STALLCAST_PORT"`
	CompactInterval time.Duration `help:"Interval between background compaction sweeps." default:"1h"`
	HolidayRefresh  time.Duration `help:"Interval between holiday feed refreshes." default:"24h"`
}

func (c *serveCmd) Run(a *app) error {
	engine := predict.New(a.cal)
	server := api.NewServer(a.store, engine, a.cal, c.Port, a.loc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	compactor := sched.NewTask("compaction", c.CompactInterval, func() {
		if err := a.store.Compact(time.Now()); err != nil {
			log.Printf("scheduler: compaction sweep failed: %v", err)
		}
	})
	compactor.Start(ctx)
	defer compactor.Stop()

	if a.flags.HolidayFeedURL != "" {
		client := calendar.NewClient(a.flags.HolidayFeedURL)
		refresher := sched.NewTask("holiday-refresh", c.HolidayRefresh, func() {
			entries, err := client.Fetch()
			if err != nil {
				log.Printf("scheduler: holiday feed refresh failed: %v", err)
				return
			}
			a.cal.Merge(entries)
			log.Printf("scheduler: merged %d holiday schedule entries", len(entries))
		})
		refresher.Start(ctx)
		defer refresher.Stop()
	} else {
		log.Println("holiday feed refresh disabled (no feed URL)")
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type compactCmd struct{}

func (c *compactCmd) Run(a *app) error {
	before, err := a.store.CountObservations()
	if err != nil {
		return err
	}
	if err := a.store.Compact(time.Now()); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	after, err := a.store.CountObservations()
	if err != nil {
		return err
	}
	log.Printf("compacted %d raw observations (%d remain)", before-after, after)
	return nil
}

type exportCmd struct{}

func (c *exportCmd) Run(a *app) error {
	locations, err := a.store.GetLocations()
	if err != nil {
		return err
	}
	records, err := a.store.GetAllObservations()
	if err != nil {
		return err
	}
	settings, err := a.store.GetSettings()
	if err != nil {
		return err
	}

	bundle, err := export.New(time.Now(), locations, records, settings)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

type progressCmd struct{}

func (c *progressCmd) Run(a *app) error {
	count, err := a.store.CountObservations()
	if err != nil {
		return err
	}
	prog := predict.Progress(count)
	fmt.Printf("%d/%d records (%.0f%%), quality %s\n",
		prog.CurrentRecords, prog.TargetRecords, prog.ProgressPercent, prog.Tier)
	for _, r := range prog.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
	return nil
}
