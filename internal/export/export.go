package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/amishk599/jobscout/internal/model"
)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home.
	api.DisableConfigDir()
}

var docxMagic = []byte("PK\x03\x04")

// Writer saves exported resumes into a directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer for dir. The directory is created on first
// write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Write checks the artifact, stores it as resume-<company>-<hash8>.<ext>
// and returns it with Path and, for PDFs, Pages filled in.
func (w *Writer) Write(p model.Posting, a model.Artifact) (model.Artifact, error) {
	if err := Inspect(&a); err != nil {
		return model.Artifact{}, err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return model.Artifact{}, fmt.Errorf("creating export dir: %w", err)
	}
	a.Filename = Filename(p, a.Format)
	a.Path = filepath.Join(w.dir, a.Filename)
	if err := os.WriteFile(a.Path, a.Data, 0o644); err != nil {
		return model.Artifact{}, fmt.Errorf("writing %s: %w", a.Path, err)
	}

	w.logger.Info("resume exported",
		"path", a.Path,
		"format", a.Format,
		"bytes", len(a.Data),
		"pages", a.Pages,
	)
	return a, nil
}

// Inspect verifies the artifact's bytes match its format and records the
// page count of PDFs.
func Inspect(a *model.Artifact) error {
	switch a.Format {
	case model.FormatPDF:
		n, err := api.PageCount(bytes.NewReader(a.Data), nil)
		if err != nil {
			return fmt.Errorf("unreadable pdf export: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("pdf export has no pages")
		}
		a.Pages = n
	case model.FormatDOCX:
		if !bytes.HasPrefix(a.Data, docxMagic) {
			return fmt.Errorf("docx export is not a zip archive")
		}
	default:
		return fmt.Errorf("unknown export format %q", a.Format)
	}
	return nil
}

// Filename returns the on-disk name for a posting's export. The company
// comes from the posting, or from its fetched JD when the posting has none.
func Filename(p model.Posting, format model.ExportFormat) string {
	hash := p.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	company := p.Company
	if company == "" && p.JD != nil {
		company = p.JD.Company
	}
	return fmt.Sprintf("resume-%s-%s.%s", slug(company), hash, format)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "company"
	}
	return out
}
