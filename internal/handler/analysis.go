package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Tim-Alpha/video-description-api/internal/model"
	"github.com/Tim-Alpha/video-description-api/internal/service"
	"github.com/Tim-Alpha/video-description-api/internal/store"
	"github.com/Tim-Alpha/video-description-api/pkg/response"
)

const maxUploadSize = 200 * 1024 * 1024 // 200MB

type AnalysisHandler struct {
	service   *service.AnalysisService
	validator *validator.Validate
}

func NewAnalysisHandler(svc *service.AnalysisService, v *validator.Validate) *AnalysisHandler {
	return &AnalysisHandler{
		service:   svc,
		validator: v,
	}
}

// AnalyzeVideo handles POST /api/v1/analyze_video.
// Accepts a multipart upload ("video") or a remote URL ("file_url"),
// never both; schedules the analysis and returns the task ID without
// waiting for any external call.
func (h *AnalysisHandler) AnalyzeVideo(c *fiber.Ctx) error {
	fileHeader, fileErr := c.FormFile("video")
	hasFile := fileErr == nil && fileHeader != nil
	fileURL := c.FormValue("file_url")
	identifier := c.FormValue("identifier")

	if hasFile && fileURL != "" {
		return response.ValidationError(c, "Ambiguous source: provide either a video file or a file_url, not both.", nil)
	}
	if !hasFile && fileURL == "" {
		return response.ValidationError(c, "No video file or URL provided.", nil)
	}

	var (
		task *model.Task
		err  error
	)
	if hasFile {
		if fileHeader.Size > maxUploadSize {
			return response.ValidationError(c, "File size exceeds the upload limit.", map[string]interface{}{
				"maxSize":  maxUploadSize,
				"fileSize": fileHeader.Size,
			})
		}
		f, openErr := fileHeader.Open()
		if openErr != nil {
			return response.ServiceError(c, "Failed to read uploaded file")
		}
		defer f.Close()

		task, err = h.service.SubmitUpload(c.Context(), f, fileHeader.Filename, identifier)
	} else {
		if vErr := h.validator.Var(fileURL, "url"); vErr != nil {
			return response.ValidationError(c, "file_url is not a valid URL.", nil)
		}
		task, err = h.service.SubmitURL(c.Context(), fileURL, identifier)
	}
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.AnalyzeVideoResponse{
		Message: "Video analysis started.",
		TaskID:  task.ID,
	})
}

// GetAnalysisResult handles GET /api/v1/analysis_result/:taskId.
// Side-effect free; repeated calls on an unchanged task return identical
// payloads.
func (h *AnalysisHandler) GetAnalysisResult(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// ShareURL handles POST /api/v1/share_url. The flic_token check runs in
// middleware before this handler; every outcome uses the endpoint's
// {"status","message"} shape.
func (h *AnalysisHandler) ShareURL(c *fiber.Ctx) error {
	var req model.ShareURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.ShareURLResponse{
			Status:  "error",
			Message: "Invalid request body.",
		})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.ShareURLResponse{
			Status:  "error",
			Message: shareValidationMessage(err),
		})
	}

	if _, err := h.service.SubmitURL(c.Context(), req.URL, req.Identifier); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(model.ShareURLResponse{
			Status:  "error",
			Message: "Failed to schedule video analysis.",
		})
	}

	return response.OK(c, model.ShareURLResponse{
		Status:  "success",
		Message: "Video accepted and will be analyzed shortly.",
	})
}

// shareValidationMessage names the field that failed instead of blaming
// the url for every validation error.
func shareValidationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fe := range vErrs {
			if fe.Field() == "Identifier" {
				return "identifier must be at most 255 characters."
			}
		}
	}
	return "A valid url is required."
}
