package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/amishk599/jobscout/internal/model"
)

// ErrEmptyInput is returned by Analyze when neither a file nor free text
// was given.
var ErrEmptyInput = errors.New("a resume file or free text is required")

// Analyze uploads a resume and/or free text for profile extraction.
func (c *Client) Analyze(ctx context.Context, in model.AnalyzeInput) (model.Analysis, error) {
	if len(in.File) == 0 && in.FreeText == "" {
		return model.Analysis{}, ErrEmptyInput
	}
	if c.uploadLimit > 0 && int64(len(in.File)) > c.uploadLimit {
		return model.Analysis{}, fmt.Errorf("resume is %d bytes, upload limit is %d", len(in.File), c.uploadLimit)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if len(in.File) > 0 {
		name := in.FileName
		if name == "" {
			name = "resume"
		}
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			return model.Analysis{}, fmt.Errorf("create upload part: %w", err)
		}
		if _, err := part.Write(in.File); err != nil {
			return model.Analysis{}, fmt.Errorf("write upload part: %w", err)
		}
	}
	if err := w.WriteField("free_text", in.FreeText); err != nil {
		return model.Analysis{}, fmt.Errorf("write free_text: %w", err)
	}
	if err := w.Close(); err != nil {
		return model.Analysis{}, fmt.Errorf("close multipart body: %w", err)
	}

	const path = "/profile/analyze-upload"
	resp, err := c.send(ctx, groupProfile, http.MethodPost, path, w.FormDataContentType(), &buf)
	if err != nil {
		return model.Analysis{}, err
	}
	defer resp.Body.Close()

	var out model.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Analysis{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

type recommendRequest struct {
	Profile model.Profile `json:"profile"`
	Limit   int           `json:"limit"`
}

type recommendResponse struct {
	Recommendations []model.RoleRecommendation `json:"role_recommendations"`
}

// RecommendRoles returns up to limit suggested roles for p.
func (c *Client) RecommendRoles(ctx context.Context, p model.Profile, limit int) ([]model.RoleRecommendation, error) {
	var out recommendResponse
	if err := c.postJSON(ctx, groupProfile, "/profile/recommend-roles", recommendRequest{Profile: p, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}
