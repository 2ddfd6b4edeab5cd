package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/geohash/internal/banner"
	"github.com/rickgao/geohash/internal/correlator"
	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/mode"
	"github.com/rickgao/geohash/internal/model"
)

var sessionStatePath string

var errQuit = errors.New("quit")

// sessionCmd runs a headless expedition driven from stdin
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run an expedition session driven by commands on stdin",
	Long: `Runs an expedition and prints destinations as they change. Commands are
read one per line:

  fix LAT LON [ACCURACY]   report a location fix
  date YYYY-MM-DD          switch the expedition to another date
  info                     print the destination on display
  cells                    enter cell selection
  select LAT LON           preview a graticule (cell selection only)
  global                   preview the globalhash (cell selection only)
  done                     leave cell selection
  pause | resume
  quit

The target is saved to --state (or state.path) on exit and restored on the
next run.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	sessionCmd.Flags().StringVar(&sessionStatePath, "state", "", "state file (default: state.path from config)")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := sessionStatePath
	if path == "" {
		path = cfg.State.Path
	}
	saved, err := loadState(path, cfg.State)
	if err != nil {
		return err
	}

	out := &printView{w: cmd.OutOrStdout()}
	texts := banner.NewTexts(cfg.Location.Language)
	notifier := banner.NewNotifier(texts, out, logger)

	corr := correlator.New(correlator.Config{Location: time.Local}, nil, notifier, logger)
	b, err := openBackend(ctx, corr.Resolve)
	if err != nil {
		return err
	}
	defer b.close()
	corr.SetDispatcher(b)

	ctrl := mode.NewController(mode.Options{
		Staleness:    cfg.Location.Staleness,
		ClosestPoint: cfg.Location.ClosestPoint,
		Location:     time.Local,
		Logger:       logger,
	}, out, corr, texts)
	corr.SetConsumer(ctrl)

	if err := ctrl.Start(saved); err != nil {
		return err
	}
	ctrl.PermissionsResult(false)
	ctrl.MapReady()
	ctrl.LocationConnected()
	if !saved.HasTarget() {
		out.printf("waiting for a location fix\n")
	}

	err = readCommands(ctx, cmd.InOrStdin(), ctrl, out)

	state := ctrl.SaveState()
	ctrl.Shutdown()
	if path != "" {
		if serr := saveState(path, state); serr != nil {
			logger.Error("failed to save state", "path", path, "error", serr)
		}
	}
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sessionControl is the part of the controller the command loop drives.
type sessionControl interface {
	LocationChanged(fix location.Fix)
	ChangeDate(date model.Date) error
	SelectGraticule(g model.Graticule) error
	SelectGlobalhash() error
	EnterCellSelection() error
	ExitCellSelection() error
	Pause()
	Resume()
	CurrentInfo() (model.Info, bool)
}

func readCommands(ctx context.Context, r io.Reader, ctrl sessionControl, out *printView) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if err := execCommand(ctrl, out, fields, time.Now()); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				out.printf("error: %v\n", err)
			}
		}
	}
}

func execCommand(ctrl sessionControl, out *printView, fields []string, now time.Time) error {
	args := fields[1:]
	switch fields[0] {
	case "fix":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: fix LAT LON [ACCURACY]")
		}
		fix := location.Fix{Time: now}
		var err error
		if fix.Latitude, err = parseCoordinate(args[0], 90); err != nil {
			return err
		}
		if fix.Longitude, err = parseCoordinate(args[1], 180); err != nil {
			return err
		}
		if len(args) == 3 {
			if fix.Accuracy, err = strconv.ParseFloat(args[2], 64); err != nil {
				return fmt.Errorf("bad accuracy %q", args[2])
			}
		}
		ctrl.LocationChanged(fix)
		if info, ok := ctrl.CurrentInfo(); ok && fix.IsAccurate() {
			out.printf("%.0f m to destination\n", fix.DistanceTo(info.Latitude(), info.Longitude()))
		}
	case "date":
		if len(args) != 1 {
			return errors.New("usage: date YYYY-MM-DD")
		}
		date, err := model.ParseDate(args[0])
		if err != nil {
			return err
		}
		return ctrl.ChangeDate(date)
	case "info":
		info, ok := ctrl.CurrentInfo()
		if !ok {
			out.printf("no destination\n")
			return nil
		}
		out.printf("%s: %.6f, %.6f (opening %s)\n", info.Date(), info.Latitude(), info.Longitude(), info.Value().StringFixed(2))
	case "cells":
		return ctrl.EnterCellSelection()
	case "select":
		if len(args) != 2 {
			return errors.New("usage: select LAT LON")
		}
		g, err := model.ParseGraticule(args[0], args[1])
		if err != nil {
			return err
		}
		return ctrl.SelectGraticule(g)
	case "global":
		return ctrl.SelectGlobalhash()
	case "done":
		return ctrl.ExitCellSelection()
	case "pause":
		ctrl.Pause()
	case "resume":
		ctrl.Resume()
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < -limit || v > limit {
		return 0, fmt.Errorf("bad coordinate %q", s)
	}
	return v, nil
}

// printView writes map and banner output as text lines.
type printView struct {
	mu sync.Mutex
	w  io.Writer
}

func (v *printView) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.w, format, args...)
}

func (v *printView) ShowDestination(info model.Info, title string) {
	v.printf("%s: %.6f, %.6f\n", title, info.Latitude(), info.Longitude())
}

func (v *printView) ShowNearby(infos []model.Info) {
	for _, n := range infos {
		v.printf("  nearby %s: %.6f, %.6f\n", n.Graticule(), n.Latitude(), n.Longitude())
	}
}

func (v *printView) ClearDestination() {
	v.printf("destination cleared\n")
}

func (v *printView) ShowBanner(text string) {
	v.printf("! %s\n", text)
}
