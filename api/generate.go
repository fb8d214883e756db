package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"

	"storyforge/imagegen"
	"storyforge/output"
	"storyforge/pipeline"
	"storyforge/story"

	"go.uber.org/zap"
)

// maxPlanBytes caps the request body of /generate_from_plan.
const maxPlanBytes = 1 << 20

// GenerateBody is the request body of POST /generate_from_plan.
type GenerateBody struct {
	Plan        *story.Plan        `json:"plan"`
	Provider    string             `json:"provider"`
	BrandID     string             `json:"brand_id"`
	Consistency *story.Consistency `json:"consistency_data"`
	TextOverlay *bool              `json:"text_overlay,omitempty"`
}

// SlideResponse is one slide of a GenerateResponse.
type SlideResponse struct {
	SlideNumber  int    `json:"slide_number"`
	Image        string `json:"image,omitempty"`
	Attempts     int    `json:"attempts"`
	FailureClass string `json:"failure_class,omitempty"`
	Error        string `json:"error,omitempty"`
}

// GenerateResponse is the body of a successful POST /generate_from_plan.
// A batch with failed slides is still a 200; FailedSlides lists them.
type GenerateResponse struct {
	BatchID      string          `json:"batch_id"`
	Provider     string          `json:"provider"`
	Images       []string        `json:"images"`
	FailedSlides []int           `json:"failed_slides"`
	Slides       []SlideResponse `json:"slides"`
	Seed         *int64          `json:"seed,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := body.Plan.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.deps.Gate != nil {
		done, err := s.deps.Gate.BeginBatch(body.Plan.Topic)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		defer done()
	}

	folder := output.StoryFolder(body.Plan.Topic, s.now())
	report, err := s.deps.Generator.GenerateFromPlan(r.Context(), pipeline.GenerateRequest{
		Plan:        body.Plan,
		OutputDir:   filepath.Join(s.config.OutputDir, folder),
		Provider:    imagegen.Selector(body.Provider),
		BrandID:     body.BrandID,
		Consistency: body.Consistency,
		TextOverlay: body.TextOverlay,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("batch failed to start", zap.String("topic", body.Plan.Topic), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, generateResponse(report, folder))
}

func generateResponse(report *pipeline.BatchReport, folder string) GenerateResponse {
	resp := GenerateResponse{
		BatchID:      report.BatchID,
		Provider:     string(report.Provider),
		Images:       make([]string, 0, len(report.Paths)),
		FailedSlides: make([]int, 0),
		Slides:       make([]SlideResponse, 0, len(report.Slides)),
		Seed:         report.Seed,
		DurationMS:   report.Duration.Milliseconds(),
	}
	for _, slide := range report.Slides {
		sr := SlideResponse{
			SlideNumber:  slide.SlideNumber,
			Attempts:     slide.Attempts,
			FailureClass: slide.FailureClass,
		}
		if slide.OK() {
			sr.Image = generatedURL(folder, slide.Path)
			resp.Images = append(resp.Images, sr.Image)
		} else {
			resp.FailedSlides = append(resp.FailedSlides, slide.SlideNumber)
			if slide.Failure != nil {
				sr.Error = slide.Failure.Error()
			}
		}
		resp.Slides = append(resp.Slides, sr)
	}
	return resp
}

// generatedURL maps a written file to its /generated/ URL.
func generatedURL(folder, path string) string {
	return generatedPrefix + url.PathEscape(folder) + "/" + url.PathEscape(filepath.Base(path))
}

// statusFor maps batch-fatal errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, story.ErrInvalidPlan), errors.Is(err, imagegen.ErrUnknownSelector):
		return http.StatusBadRequest
	case errors.Is(err, imagegen.ErrProviderUnconfigured), errors.Is(err, pipeline.ErrNoRegistry):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
