// Command statmapd drives one statemap ingest: it maps a trace file,
// coalesces it into a bounded rectangle set, writes the result as
// newline-delimited JSON, and optionally appends a row to a run log and
// serves live counters over HTTP while it works.
//
// Turning emitted rectangles into a rendered visualization is someone
// else's job; this binary only does the parts the engine itself owns.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"statemap/config"
	"statemap/internal/runlog"
	"statemap/internal/statserver"
	"statemap/logger"
	"statemap/statemap"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file (optional)")
	maxrect    = flag.Int64("maxrect", 0, "rectangle budget (0 uses config/default)")
	begin      = flag.Int64("begin", 0, "clip all rectangles to start no earlier than this time")
	end        = flag.Int64("end", 0, "treat this time as the end of the trace")
	notags     = flag.Bool("notags", false, "discard tag data while ingesting")
	dryrun     = flag.Bool("dryrun", false, "ingest and coalesce but do not emit records")
	statsAddr  = flag.String("stats-addr", "", "if set, serve /healthz and /stats on this address")
	runlogPath = flag.String("runlog", "", "if set, append a row to this SQLite run log on completion")
	showVersion = flag.Bool("version", false, "print version and exit")
)

// Version is overridable at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("statmapd %s\n", Version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: statmapd [flags] <trace-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading config: %v", err)
	}
	if *maxrect > 0 {
		cfg.MaxRect = *maxrect
	}
	if *begin > 0 {
		cfg.Begin = *begin
	}
	if *end > 0 {
		cfg.End = *end
	}
	if *notags {
		cfg.NoTags = true
	}
	if *dryrun {
		cfg.DryRun = true
	}

	engine := statemap.Create(cfg)

	// mu guards only the local done flag below; engine's own counters
	// are already safe to read concurrently with an in-flight Ingest
	// (see Engine.snap in statemap/engine.go).
	var mu sync.Mutex
	done := false

	if *statsAddr != "" {
		go func() {
			err := statserver.ListenAndServe(*statsAddr, func() statserver.Stats {
				mu.Lock()
				defer mu.Unlock()
				s := statserver.Stats{
					RunID:     engine.RunID(),
					RectCount: engine.RectCount(),
					Coalesced: engine.Coalesced(),
					Elisions:  engine.Elisions(),
					Events:    engine.Events(),
					Done:      done,
				}
				if e := engine.Err(); e != nil {
					s.Err = e.Error()
				}
				return s
			})
			if err != nil {
				logger.Error("stats server stopped: %v", err)
			}
		}()
	}

	enc := json.NewEncoder(os.Stdout)
	emit := func(rec statemap.Record) error {
		return enc.Encode(rec)
	}

	_, ingestErr := engine.Ingest(path, emit)

	mu.Lock()
	done = true
	mu.Unlock()

	if *runlogPath != "" {
		if logErr := appendRunLog(engine, cfg, path, ingestErr); logErr != nil {
			logger.Warn("runlog: %v", logErr)
		}
	}

	rectCount := engine.RectCount()
	coalesced := engine.Coalesced()
	elisions := engine.Elisions()
	events := engine.Events()
	engine.Destroy()

	if ingestErr != nil {
		logger.Error("ingest failed: %v", ingestErr)
		os.Exit(1)
	}

	logger.Info("ingest complete: %d rectangles, %d coalesced, %d elisions, %d events",
		rectCount, coalesced, elisions, events)
}

func appendRunLog(engine *statemap.Engine, cfg config.IngestConfig, path string, ingestErr error) error {
	l, err := runlog.Open(*runlogPath)
	if err != nil {
		return err
	}
	defer l.Close()

	errText := ""
	if ingestErr != nil {
		errText = ingestErr.Error()
	}

	return l.Append(runlog.Run{
		RunID:      engine.RunID(),
		InputPath:  path,
		MaxRect:    cfg.MaxRect,
		Begin:      cfg.Begin,
		End:        cfg.End,
		NoTags:     cfg.NoTags,
		RectCount:  engine.RectCount(),
		Coalesced:  engine.Coalesced(),
		Elisions:   engine.Elisions(),
		Events:     engine.Events(),
		Err:        errText,
		FinishedAt: time.Now(),
	})
}
