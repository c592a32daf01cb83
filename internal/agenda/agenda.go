// Package agenda enumerates upcoming event occurrences across calendar
// sources and renders them as text lines.
package agenda

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"

	"evlist/internal/format"
	"evlist/internal/ics"
	appLog "evlist/internal/log"
	"evlist/internal/model"
)

// Options configures one enumeration.
type Options struct {
	// Sources are the calendars to read.
	Sources []ics.Source

	// Delta is the window length; occurrences starting in [now, now+Delta)
	// are listed.
	Delta time.Duration

	// Now anchors the window. Zero means time.Now(), sampled per call.
	Now time.Time

	// Location is the display timezone for timed events. Nil means local.
	Location *time.Location

	// Formatter renders one occurrence per line. Nil means format.Text.
	Formatter format.Func

	// Loader reads source payloads. Nil means a default Loader.
	Loader *ics.Loader
}

// List returns one formatted line per occurrence of every event in every
// source whose start falls within the window, sorted chronologically.
// Per-source load/parse failures are accumulated and fail the whole call.
func List(ctx context.Context, opts Options) ([]string, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = format.Text
	}
	loader := opts.Loader
	if loader == nil {
		loader = ics.NewLoader("")
	}

	window := ics.Window{
		Start:    now,
		End:      now.Add(opts.Delta),
		Location: opts.Location,
	}

	var errs *multierror.Error
	var occurrences []model.Occurrence

	for _, src := range opts.Sources {
		res, err := loader.Load(ctx, src)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("load %s: %w", sourceLabel(src), err))
			continue
		}

		events, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("parse %s: %w", sourceLabel(src), err))
			continue
		}

		expanded, err := ics.Expand(events, window)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("expand %s: %w", sourceLabel(src), err))
			continue
		}

		appLog.Debug("source enumerated",
			"id", src.ID,
			"events", len(events),
			"occurrences", len(expanded.Occurrences),
			"from_cache", res.FromCache,
		)
		occurrences = append(occurrences, expanded.Occurrences...)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].Start.Before(occurrences[j].Start)
		}
		return occurrences[i].Summary < occurrences[j].Summary
	})

	lines := make([]string, 0, len(occurrences))
	for _, o := range occurrences {
		lines = append(lines, formatter(o))
	}
	return lines, nil
}

func sourceLabel(src ics.Source) string {
	if src.Location != "" {
		return src.Location
	}
	if src.Name != "" {
		return src.Name
	}
	return src.ID
}
