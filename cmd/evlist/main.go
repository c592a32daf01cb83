package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"evlist/internal/agenda"
	"evlist/internal/config"
	"evlist/internal/format"
	"evlist/internal/ics"
	appLog "evlist/internal/log"
)

var version = "dev"

// sampleCalendar is the bundled fallback used when neither --calendar
// nor the config file names a source.
//
//go:embed sample.ics
var sampleCalendar []byte

type CLI struct {
	Config   string `help:"Path to config file" default:"~/.config/evlist/config.yaml" type:"path"`
	Verbose  bool   `short:"v" help:"Include additional information for each event"`
	Days     int    `help:"Enumerate events this many days into the future" default:"45"`
	Calendar string `help:"Path or URL of the iCalendar file to read (default: config, else bundled sample)"`
	Watch    bool   `help:"Keep running and re-print on the configured schedule"`
	NoColor  bool   `help:"Disable colored output"`
	Debug    bool   `help:"Enable debug logging"`

	Version kong.VersionFlag `help:"Show version"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("evlist"),
		kong.Description("Format event list from an iCalendar (ics) file"),
		kong.UsageOnError(),
		kong.Vars{"version": "evlist " + version},
	)

	appLog.SetDebug(cli.Debug)

	if cli.Days <= 0 {
		appLog.Error("invalid --days", fmt.Errorf("must be positive, got %d", cli.Days))
		os.Exit(1)
	}

	conf, err := config.Load(cli.Config)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", cli.Config)
		os.Exit(1)
	}

	loc := time.Local
	if conf.Timezone != "" {
		loc, err = time.LoadLocation(conf.Timezone)
		if err != nil {
			appLog.Error("invalid timezone in config", err, "timezone", conf.Timezone)
			os.Exit(1)
		}
	}

	formatter := format.Text
	if cli.Verbose {
		formatter = format.TextWithLocation
	}
	formatter = format.NewHighlighter(conf.Highlight, cli.NoColor).Wrap(formatter)

	opts := agenda.Options{
		Sources:   resolveSources(cli, conf),
		Delta:     time.Duration(cli.Days) * 24 * time.Hour,
		Location:  loc,
		Formatter: formatter,
		Loader:    ics.NewLoader(conf.CacheDir),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if cli.Watch {
		err := agenda.Watch(ctx, conf.WatchCron, func() {
			lines, err := agenda.List(ctx, opts)
			if err != nil {
				appLog.Error("listing failed", err)
				return
			}
			fmt.Println(strings.Join(lines, "\n"))
		})
		if err != nil {
			appLog.Error("watch failed", err, "schedule", conf.WatchCron)
			os.Exit(1)
		}
		return
	}

	lines, err := agenda.List(ctx, opts)
	if err != nil {
		appLog.Error("listing failed", err)
		os.Exit(1)
	}
	fmt.Println(strings.Join(lines, "\n"))
}

// resolveSources picks the calendar sources for this run: the --calendar
// flag wins outright; otherwise the config's default calendar plus any
// extra sources; otherwise the bundled sample.
func resolveSources(cli CLI, conf *config.Config) []ics.Source {
	if cli.Calendar != "" {
		return []ics.Source{{ID: "cli", Name: cli.Calendar, Location: cli.Calendar}}
	}

	var out []ics.Source
	if conf.Calendar != "" {
		out = append(out, ics.Source{ID: "default", Name: conf.Calendar, Location: conf.Calendar})
	}
	for _, s := range conf.Sources {
		out = append(out, ics.Source{ID: s.ID, Name: s.Name, Location: s.Location})
	}
	if len(out) == 0 {
		out = append(out, ics.Source{ID: "sample", Name: "bundled sample calendar", Inline: sampleCalendar})
	}
	return out
}
