package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/amishk599/jobscout/internal/model"
)

type fetchJDRequest struct {
	URL    string `json:"jd_url"`
	Render bool   `json:"render"`
}

type fetchJDResponse struct {
	JD model.JD `json:"jd"`
}

// FetchJD asks the JD backend to fetch and parse the page behind link.
func (c *Client) FetchJD(ctx context.Context, link string) (model.JD, error) {
	var out fetchJDResponse
	if err := c.postJSON(ctx, groupJD, "/jd/fetch", fetchJDRequest{URL: link, Render: c.renderJD}, &out); err != nil {
		return model.JD{}, err
	}
	return out.JD, nil
}

type matchRequest struct {
	Profile model.Profile `json:"profile"`
	JD      model.JD      `json:"jd"`
}

// Match scores p against jd.
func (c *Client) Match(ctx context.Context, p model.Profile, jd model.JD) (model.MatchResult, error) {
	var out model.MatchResult
	if err := c.postJSON(ctx, groupMatch, "/matching/match", matchRequest{Profile: p, JD: jd}, &out); err != nil {
		return model.MatchResult{}, err
	}
	return out, nil
}

type renderRequest struct {
	Profile    model.Profile `json:"profile"`
	JD         model.JD      `json:"jd"`
	TemplateID string        `json:"template_id"`
	Language   string        `json:"language"`
	Polish     bool          `json:"polish"`
}

func newRenderRequest(p model.Profile, jd model.JD, opts model.RenderOptions) renderRequest {
	return renderRequest{
		Profile:    p,
		JD:         jd,
		TemplateID: opts.TemplateID,
		Language:   opts.Language,
		Polish:     opts.Polish,
	}
}

type previewResponse struct {
	HTML string         `json:"html"`
	Meta map[string]any `json:"meta"`
}

// Preview renders a tailored resume as HTML.
func (c *Client) Preview(ctx context.Context, p model.Profile, jd model.JD, opts model.RenderOptions) (model.Document, error) {
	var out previewResponse
	if err := c.postJSON(ctx, groupResume, "/resume/preview", newRenderRequest(p, jd, opts), &out); err != nil {
		return model.Document{}, err
	}
	return model.Document{HTML: out.HTML, Meta: out.Meta}, nil
}

// Export renders a tailored resume as a binary document.
func (c *Client) Export(ctx context.Context, p model.Profile, jd model.JD, opts model.RenderOptions, format model.ExportFormat) (model.Artifact, error) {
	payload, err := json.Marshal(newRenderRequest(p, jd, opts))
	if err != nil {
		return model.Artifact{}, fmt.Errorf("marshal export request: %w", err)
	}

	path := "/resume/file/" + string(format)
	resp, err := c.send(ctx, groupResume, http.MethodPost, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return model.Artifact{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
	if err != nil {
		return model.Artifact{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxArtifactSize {
		return model.Artifact{}, fmt.Errorf("%s: artifact exceeds %d bytes", path, maxArtifactSize)
	}
	if len(data) == 0 {
		return model.Artifact{}, fmt.Errorf("%s: empty artifact", path)
	}

	return model.Artifact{
		Format:   format,
		Filename: attachmentName(resp.Header.Get("Content-Disposition"), "resume."+string(format)),
		Data:     data,
	}, nil
}

// attachmentName returns the filename from a Content-Disposition header,
// or def when none is given.
func attachmentName(header, def string) string {
	if header == "" {
		return def
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil || params["filename"] == "" {
		return def
	}
	return params["filename"]
}
