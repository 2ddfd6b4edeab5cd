package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/geohash/internal/banner"
	"github.com/rickgao/geohash/internal/connection"
	"github.com/rickgao/geohash/internal/model"
)

var (
	hashCell   string
	hashGlobal bool
	hashNearby bool
	hashJSON   bool
)

// hashCmd computes a single destination
var hashCmd = &cobra.Command{
	Use:   "hash [DATE]",
	Short: "Print the destination for a date and graticule",
	Long: `Prints the hashpoint for DATE (YYYY-MM-DD, default today) in the given
graticule, or the globalhash with --globalhash. Without either flag the
graticule from state.last_graticule is used.

Example:
  geohash hash 2008-05-26 --cell "37 -122" --nearby`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringVar(&hashCell, "cell", "", `graticule as "LAT LON", e.g. "52 -0"`)
	hashCmd.Flags().BoolVar(&hashGlobal, "globalhash", false, "compute the globalhash")
	hashCmd.Flags().BoolVar(&hashNearby, "nearby", false, "include the eight surrounding graticules")
	hashCmd.Flags().BoolVar(&hashJSON, "json", false, "print the response as JSON")
}

func runHash(cmd *cobra.Command, args []string) error {
	today := model.Today(time.Local)
	date := today
	if len(args) == 1 {
		var err error
		if date, err = model.ParseDate(args[0]); err != nil {
			return err
		}
	}

	g, err := hashTarget()
	if err != nil {
		return err
	}
	flags := model.FlagUserInitiated
	if hashNearby && g != nil {
		flags |= model.FlagIncludeNearby
	}
	req := model.NewRequest(g, date, flags)

	results := make(chan model.Response, 1)
	b, err := openBackend(cmd.Context(), func(resp model.Response) {
		if resp.RequestID != req.ID || !resp.SameTarget(req.Graticule) {
			return
		}
		select {
		case results <- resp:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.Dispatch(req); err != nil {
		return err
	}

	select {
	case resp := <-results:
		texts := banner.NewTexts(cfg.Location.Language)
		return printResponse(cmd.OutOrStdout(), texts, resp, today, hashJSON)
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case <-time.After(timeout):
		return fmt.Errorf("no response for %s after %s", date, timeout)
	}
}

// hashTarget returns the requested graticule, nil meaning the globalhash.
func hashTarget() (*model.Graticule, error) {
	switch {
	case hashGlobal:
		return nil, nil
	case hashCell != "":
		g, err := model.ParseGraticuleString(hashCell)
		if err != nil {
			return nil, err
		}
		return &g, nil
	}
	g, err := cfg.State.Graticule()
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.New("no graticule: pass --cell or --globalhash")
	}
	return g, nil
}

func printResponse(w io.Writer, texts *banner.Texts, resp model.Response, today model.Date, asJSON bool) error {
	if resp.Code != model.ResponseOK || resp.Info == nil {
		return errors.New(texts.Failure(resp.Code, resp.Date, resp.Date.Equal(today)))
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(connection.EncodeResponse(resp))
	}

	info := *resp.Info
	fmt.Fprintf(w, "%s: %.6f, %.6f\n", texts.MarkerTitle(info), info.Latitude(), info.Longitude())
	fmt.Fprintf(w, "  opening %s on %s\n", info.Value().StringFixed(2), info.StockDate())
	for _, n := range resp.Nearby {
		fmt.Fprintf(w, "  %-10s %.6f, %.6f\n", n.Graticule(), n.Latitude(), n.Longitude())
	}
	return nil
}
