package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/notifier"
	"github.com/amishk599/jobscout/internal/render"
	"github.com/amishk599/jobscout/internal/tui"
)

var tailorFlags struct {
	format  string
	company string
	title   string
	preview bool
}

var tailorCmd = &cobra.Command{
	Use:   "tailor <job-url>",
	Short: "Fetch a job description, score your profile and export a tailored resume",
	Long: `Runs the full pipeline for a single job link: fetch the job description,
match it against the stored profile, and export a tailored resume into the
configured export directory. Run "jobscout profile analyze" first.`,
	Args: cobra.ExactArgs(1),
	RunE: runTailor,
}

func init() {
	tailorCmd.Flags().StringVar(&tailorFlags.format, "format", "", "export format: pdf or docx (default from config)")
	tailorCmd.Flags().StringVar(&tailorFlags.company, "company", "", "company name used in the file name")
	tailorCmd.Flags().StringVar(&tailorFlags.title, "title", "", "job title shown in the summary")
	tailorCmd.Flags().BoolVar(&tailorFlags.preview, "preview", false, "print the tailored resume as text before exporting")
	rootCmd.AddCommand(tailorCmd)
}

// linkPosting builds a posting for a job link given on the command line.
// Its hash is derived from the normalised link so the same link always
// maps to the same export file name.
func linkPosting(link, company, title string) (model.Posting, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.Posting{}, fmt.Errorf("invalid job url %q", link)
	}
	u.Fragment = ""
	sum := sha1.Sum([]byte(u.String()))
	if title == "" {
		title = u.Host
	}
	return model.Posting{
		Hash:    hex.EncodeToString(sum[:]),
		Source:  "link",
		Title:   title,
		Company: company,
		URL:     u.String(),
	}, nil
}

func runTailor(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	format := cfg.Export.Format
	if tailorFlags.format != "" {
		f, err := model.ParseExportFormat(tailorFlags.format)
		if err != nil {
			return err
		}
		format = f
	}

	posting, err := linkPosting(args[0], tailorFlags.company, tailorFlags.title)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, ok := a.profiles.Current(); !ok {
		return fmt.Errorf("no profile stored; run \"jobscout profile analyze\" first")
	}

	sess := a.newSession(notifier.NewLogDisplay(logger))
	defer sess.Close()
	pl := sess.Pipeline()
	pl.Register(posting)

	ctx, stop := signalContext()
	defer stop()

	var (
		jd    model.JD
		match model.MatchResult
		doc   model.Document
		art   model.Artifact
	)
	err = tui.RunLoader(ctx, "Tailoring resume...", func(ctx context.Context) error {
		var err error
		if jd, err = pl.FetchJD(ctx, posting.Hash); err != nil {
			return err
		}
		if match, err = pl.Match(ctx, posting.Hash); err != nil {
			return err
		}
		if tailorFlags.preview {
			if doc, err = pl.Preview(ctx, posting.Hash); err != nil {
				return err
			}
		}
		art, err = pl.Export(ctx, posting.Hash, format)
		return err
	})
	if err != nil {
		return err
	}

	title := jd.Title
	if title == "" {
		title = posting.Title
	}
	company := jd.Company
	if company == "" {
		company = posting.Company
	}
	fmt.Printf("%s at %s\n", title, company)
	fmt.Printf("Match score: %d/100\n", match.Score)
	printList("Strengths", match.Reasons)
	printList("Gaps", match.Gaps)
	printList("Recommendations", match.Recommendations)

	if tailorFlags.preview {
		text, err := render.Text(doc.HTML)
		if err != nil {
			return fmt.Errorf("rendering preview: %w", err)
		}
		fmt.Printf("\n%s\n%s\n", strings.Repeat("─", 60), text)
	}

	fmt.Printf("\nExported %s", art.Path)
	if art.Pages > 0 {
		fmt.Printf(" (%d pages)", art.Pages)
	}
	fmt.Println()
	return nil
}

func printList(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", heading)
	for _, it := range items {
		fmt.Printf("  • %s\n", it)
	}
}
