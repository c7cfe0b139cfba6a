package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/batch"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/notifier"
	"github.com/amishk599/jobscout/internal/query"
	"github.com/amishk599/jobscout/internal/tui"
)

var searchFlags struct {
	headless  bool
	titles    string
	keywords  string
	locations string
	seek      string
	linkedin  string
	limit     string
	more      int
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for jobs (interactive TUI, or --headless to log results)",
	Long: `Opens the search TUI. Query flags pre-fill the form; values not given
come from the search section of the config file.

With --headless no TUI is started: the search runs with the given query,
every new posting is logged, and --more N fetches N further batches once
the live stream has ended.`,
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&searchFlags.headless, "headless", false, "run without the TUI and log postings")
	f.StringVar(&searchFlags.titles, "titles", "", "comma-separated job titles")
	f.StringVar(&searchFlags.keywords, "keywords", "", "comma-separated keywords")
	f.StringVar(&searchFlags.locations, "locations", "", "comma-separated locations (default AU)")
	f.StringVar(&searchFlags.seek, "seek", "", "postings to request from seek (0-50)")
	f.StringVar(&searchFlags.linkedin, "linkedin", "", "postings to request from linkedin (0-50)")
	f.StringVar(&searchFlags.limit, "limit", "", "total postings per request (1-100)")
	f.IntVar(&searchFlags.more, "more", 0, "headless only: batches to fetch after the stream ends")
}

// applySearchFlags overrides the configured search defaults with any query
// flags given on the command line.
func applySearchFlags(cmd *cobra.Command, sc *config.SearchConfig) {
	f := cmd.Flags()
	if f.Changed("titles") {
		sc.Titles = query.SplitCSV(searchFlags.titles)
	}
	if f.Changed("keywords") {
		sc.Keywords = query.SplitCSV(searchFlags.keywords)
	}
	if f.Changed("locations") {
		sc.Locations = query.SplitCSV(searchFlags.locations)
	}
	alloc := make(map[string]int, len(sc.Allocation))
	for src, n := range sc.Allocation {
		alloc[src] = n
	}
	if f.Changed("seek") {
		alloc["seek"] = atoiOr(searchFlags.seek, 0)
	}
	if f.Changed("linkedin") {
		alloc["linkedin"] = atoiOr(searchFlags.linkedin, 0)
	}
	sc.Allocation = alloc
	if f.Changed("limit") {
		sc.Limit = atoiOr(searchFlags.limit, 0)
	}
}

// searchInput renders the search config as raw form input; query.Build
// applies the same normalisation it applies to typed input.
func searchInput(sc config.SearchConfig) query.Input {
	alloc := make(map[string]string, len(sc.Allocation))
	for src, n := range sc.Allocation {
		alloc[src] = strconv.Itoa(n)
	}
	return query.Input{
		Titles:     strings.Join(sc.Titles, ","),
		Keywords:   strings.Join(sc.Keywords, ","),
		Locations:  strings.Join(sc.Locations, ","),
		Allocation: alloc,
		Limit:      strconv.Itoa(sc.Limit),
	}
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if searchFlags.headless {
		return runHeadless(ctx, cmd)
	}

	cfg := mustLoadConfig(setupLogger(debug))
	applySearchFlags(cmd, &cfg.Search)

	logger, closeLog, err := setupTUILogger(cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := tui.NewBridge()
	sess := a.newSession(bridge)
	return tui.Run(ctx, sess, bridge, cfg)
}

func runHeadless(ctx context.Context, cmd *cobra.Command) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)
	applySearchFlags(cmd, &cfg.Search)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	display := notifier.NewLogDisplay(logger)
	sess := a.newSession(display)
	defer sess.Close()

	q, err := sess.Search(ctx, searchInput(cfg.Search))
	if err != nil {
		return fmt.Errorf("starting search: %w", err)
	}
	logger.Info("search started",
		"session_id", q.SessionID,
		"titles", strings.Join(q.Titles, ","),
		"keywords", strings.Join(q.Keywords, ","),
		"locations", strings.Join(q.Locations, ","),
		"limit", q.Limit,
	)

	if err := sess.Wait(ctx); err != nil {
		return nil // interrupted
	}

	for i := 0; i < searchFlags.more; i++ {
		res, err := sess.More(ctx)
		if err != nil {
			if errors.Is(err, batch.ErrBusy) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("next batch failed", "batch", i+1, "error", err)
			break
		}
		if res.New == 0 {
			break
		}
	}

	reason, _ := display.Closed()
	prog := display.Progress()
	logger.Info("search complete",
		"postings", sess.Delivered(),
		"delivered", prog.Delivered,
		"requested", prog.Requested,
		"stream", reason,
	)
	if len(display.Postings()) == 0 {
		fmt.Fprintln(os.Stderr, "no postings found; try broader titles or keywords")
	}
	return nil
}
