package model

import (
	"context"
	"fmt"
	"strings"
)

// JD is the structured job description fetched from a posting's link.
type JD struct {
	Title            string   `json:"title,omitempty"`
	Company          string   `json:"company,omitempty"`
	Location         string   `json:"location,omitempty"`
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	Benefits         []string `json:"benefits"`
	Keywords         []string `json:"keywords"`
}

// MatchResult is the scoring backend's verdict for a profile against a JD.
type MatchResult struct {
	Score           int      `json:"score"` // 0-100
	Reasons         []string `json:"reasons"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
}

// RenderOptions are the fixed template settings sent with preview and export.
type RenderOptions struct {
	TemplateID string
	Language   string
	Polish     bool
}

// Document is a renderable resume preview.
type Document struct {
	HTML string
	Meta map[string]any
}

// ExportFormat selects the binary artifact format.
type ExportFormat string

const (
	FormatPDF  ExportFormat = "pdf"
	FormatDOCX ExportFormat = "docx"
)

// ParseExportFormat accepts "pdf" or "docx", case-insensitively.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatDOCX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q (want pdf or docx)", s)
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// Artifact is a downloadable export.
type Artifact struct {
	Format   ExportFormat
	Filename string
	Data     []byte
	Pages    int    // PDF only, zero when unknown
	Path     string // set once written to disk
}

// JDFetcher fetches the structured JD behind a posting link.
type JDFetcher interface {
	FetchJD(ctx context.Context, link string) (JD, error)
}

// Matcher scores a profile against a JD.
type Matcher interface {
	Match(ctx context.Context, p Profile, jd JD) (MatchResult, error)
}

// ResumeRenderer renders previews and binary exports of a tailored resume.
type ResumeRenderer interface {
	Preview(ctx context.Context, p Profile, jd JD, opts RenderOptions) (Document, error)
	Export(ctx context.Context, p Profile, jd JD, opts RenderOptions, format ExportFormat) (Artifact, error)
}

// ProfileAnalyzer is the profile-parsing backend.
type ProfileAnalyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput) (Analysis, error)
	RecommendRoles(ctx context.Context, p Profile, limit int) ([]RoleRecommendation, error)
}
