package tui

import (
	"fmt"
	"strings"

	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/pipeline"
)

func renderPostings(states []pipeline.State, cursor int) string {
	if len(states) == 0 {
		return "  (no jobs yet)"
	}

	var b strings.Builder
	for i, st := range states {
		p := st.Posting
		isSelected := i == cursor

		titleSt := jobTitleStyle
		subtitleSt := jobSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedJobTitleStyle
			subtitleSt = selectedJobSubtitleStyle
			prefix = "> "
		}

		title := p.Title
		if st.Match != nil {
			title = fmt.Sprintf("%s  [%d]", title, st.Match.Score)
		}
		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(subtitle(p)))
		b.WriteByte('\n')

		if i < len(states)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func subtitle(p model.Posting) string {
	parts := []string{p.Company}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	if p.Remote != nil && *p.Remote {
		parts = append(parts, "remote")
	}
	posted := "n/a"
	if p.PostedAt != "" {
		posted = p.PostedAt
	}
	parts = append(parts, posted, p.Source)
	return strings.Join(parts, " · ")
}

func renderStatus(s pipeline.StageState, spin string) string {
	switch s.Status {
	case pipeline.Running:
		return runningStyle.Render(spin + " running")
	case pipeline.Done:
		return doneStyle.Render("✓ done")
	case pipeline.Failed:
		return errorStyle.Render("✗ failed: " + s.Err)
	}
	return idleStyle.Render("· idle")
}

func renderDetail(st pipeline.State, preview string, showPreview bool, spin string, wrapWidth int) string {
	p := st.Posting
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}
	bullets := func(items []string) {
		for _, it := range items {
			if it != "" {
				b.WriteString(bodyStyle.Render(wordWrap("  • "+it, wrapWidth)) + "\n")
			}
		}
	}

	addField("Title", p.Title)
	addField("Company", p.Company)
	addField("Location", p.Location)
	addField("Source", p.Source)
	addField("Posted", p.PostedAt)
	addField("Job URL", p.URL)
	if len(p.Keywords) > 0 {
		addField("Keywords", strings.Join(p.Keywords, ", "))
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Pipeline ") + "\n\n")
	for _, stage := range pipeline.Stages {
		addField(stage.String(), renderStatus(st.Stage(stage), spin))
	}

	if jd := p.JD; jd != nil && st.HasJD() {
		b.WriteByte('\n')
		b.WriteString(divider("── Job Description ") + "\n\n")
		addField("Title", jd.Title)
		addField("Company", jd.Company)
		addField("Location", jd.Location)
		if len(jd.Keywords) > 0 {
			addField("Keywords", strings.Join(jd.Keywords, ", "))
		}
		if len(jd.Requirements) > 0 {
			b.WriteString("\nRequirements\n")
			bullets(jd.Requirements)
		}
		if len(jd.Responsibilities) > 0 {
			b.WriteString("\nResponsibilities\n")
			bullets(jd.Responsibilities)
		}
	}

	if r := st.Match; r != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── Match ") + "\n\n")
		addField("Score", fmt.Sprintf("%d/100", r.Score))
		if len(r.Reasons) > 0 {
			b.WriteString("\nReasons\n")
			bullets(r.Reasons)
		}
		if len(r.Gaps) > 0 {
			b.WriteString("\nGaps\n")
			bullets(r.Gaps)
		}
		if len(r.Recommendations) > 0 {
			b.WriteString("\nRecommendations\n")
			bullets(r.Recommendations)
		}
	}

	if a := st.Artifact; a != nil {
		b.WriteByte('\n')
		addField("Exported", a.Path)
		if a.Pages > 0 {
			addField("Pages", fmt.Sprintf("%d", a.Pages))
		}
	}

	if preview != "" {
		b.WriteByte('\n')
		if showPreview {
			b.WriteString(divider("── Resume Preview ") + "\n\n")
			for _, line := range strings.Split(preview, "\n") {
				b.WriteString(bodyStyle.Render(wordWrap(line, wrapWidth)) + "\n")
			}
		} else {
			b.WriteString(hintStyle.Render("  press v to read the resume preview") + "\n")
		}
	}

	return b.String()
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
