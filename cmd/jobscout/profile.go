package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/backend"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/profile"
	"github.com/amishk599/jobscout/internal/tui"
)

var (
	analyzeFile string
	analyzeText string
	rolesLimit  int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the candidate profile used for matching and resumes",
}

var profileAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build a profile from a resume file and/or free text",
	Example: `  jobscout profile analyze --file resume.pdf
  jobscout profile analyze --text "5 years Go, Kubernetes, Sydney"`,
	RunE: runProfileAnalyze,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, profiles *profile.Store) error {
			p, ok := profiles.Current()
			if !ok {
				return profile.ErrNoProfile
			}
			printProfile(p)
			return nil
		})
	},
}

var profileClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, profiles *profile.Store) error {
			if err := profiles.Clear(); err != nil {
				return err
			}
			fmt.Println("Profile cleared.")
			return nil
		})
	},
}

var profileRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Recommend job titles for the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, profiles *profile.Store) error {
			var recs []model.RoleRecommendation
			err := tui.RunLoader(ctx, "Recommending roles...", func(ctx context.Context) error {
				var err error
				recs, err = profiles.RecommendRoles(ctx, rolesLimit)
				return err
			})
			if err != nil {
				return err
			}
			printRoles(recs)
			return nil
		})
	},
}

func init() {
	profileAnalyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "resume file (pdf, docx or txt)")
	profileAnalyzeCmd.Flags().StringVarP(&analyzeText, "text", "t", "", "free-text description of your experience")
	profileRolesCmd.Flags().IntVarP(&rolesLimit, "limit", "n", 5, "number of roles to recommend")

	profileCmd.AddCommand(profileAnalyzeCmd, profileShowCmd, profileClearCmd, profileRolesCmd)
	rootCmd.AddCommand(profileCmd)
}

// withProfiles loads config and the profile store, then runs fn.
func withProfiles(fn func(ctx context.Context, profiles *profile.Store) error) error {
	logger := setupLogger(debug)
	cfg := mustLoadConfig(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, a.profiles)
}

func runProfileAnalyze(cmd *cobra.Command, args []string) error {
	in := model.AnalyzeInput{FreeText: analyzeText}
	if analyzeFile != "" {
		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}
		in.File = data
		in.FileName = filepath.Base(analyzeFile)
	}

	return withProfiles(func(ctx context.Context, profiles *profile.Store) error {
		var res model.Analysis
		err := tui.RunLoader(ctx, "Analyzing profile...", func(ctx context.Context) error {
			var err error
			res, err = profiles.Analyze(ctx, in)
			return err
		})
		if errors.Is(err, backend.ErrEmptyInput) {
			return fmt.Errorf("%w: pass --file and/or --text", err)
		}
		if err != nil {
			return err
		}

		printProfile(res.Profile)
		if len(res.Keywords) > 0 {
			fmt.Printf("\nKeywords: %s\n", strings.Join(res.Keywords, ", "))
		}
		for _, n := range res.Notes {
			fmt.Printf("  note: %s\n", n)
		}
		if len(res.Recommendations) > 0 {
			fmt.Println()
			printRoles(res.Recommendations)
		}
		return nil
	})
}

func printProfile(p model.Profile) {
	name := p.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("Profile: %s\n", name)
	if p.Location != "" {
		fmt.Printf("Location: %s\n", p.Location)
	}
	if p.Summary != "" {
		fmt.Printf("\n%s\n", p.Summary)
	}
	if len(p.Skills) > 0 {
		fmt.Printf("\nSkills: %s\n", strings.Join(p.Skills, ", "))
	}
	if len(p.Experience) > 0 {
		fmt.Println("\nExperience:")
		for _, e := range p.Experience {
			fmt.Printf("  %s, %s (%s - %s)\n", e.Role, e.Company, e.Start, e.End)
		}
	}
	if len(p.Education) > 0 {
		fmt.Println("\nEducation:")
		for _, e := range p.Education {
			fmt.Printf("  %s %s, %s\n", e.Degree, e.Major, e.School)
		}
	}
	if len(p.TargetRoles) > 0 {
		fmt.Printf("\nTarget roles: %s\n", strings.Join(p.TargetRoles, ", "))
	}
}

func printRoles(recs []model.RoleRecommendation) {
	if len(recs) == 0 {
		fmt.Println("No role recommendations.")
		return
	}
	fmt.Printf("%-30s %s\n", "Role", "Why")
	fmt.Println(strings.Repeat("─", 60))
	for _, r := range recs {
		fmt.Printf("%-30s %s\n", r.Title, r.Reason)
		if len(r.MatchedKeywords) > 0 {
			fmt.Printf("%-30s matched: %s\n", "", strings.Join(r.MatchedKeywords, ", "))
		}
	}
}
