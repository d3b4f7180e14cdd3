// handlers_workspace.go - Server-side input panel
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/submission"
	"github.com/concept-map/backend/internal/upload"
)

// WorkspaceHandlerImpl implements WorkspaceHandler
type WorkspaceHandlerImpl struct {
	panel    Workspace
	endpoint string
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(panel Workspace, endpoint string, collector *metrics.Collector, logger *zap.Logger) WorkspaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceHandlerImpl{
		panel:    panel,
		endpoint: endpoint,
		metrics:  collector,
		logger:   logger.Named("workspace"),
	}
}

type workspaceResponse struct {
	submission.State
	Endpoint        string `json:"endpoint"`
	AllowedMimeType string `json:"allowedMimeType"`
	MaxFileSize     int64  `json:"maxFileSize"`
}

type setTextRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	Graph *models.Graph `json:"graph"`
}

// HandleGetWorkspace returns the panel state and its attachment rules
func (h *WorkspaceHandlerImpl) HandleGetWorkspace(c echo.Context) error {
	return c.JSON(http.StatusOK, h.response())
}

// HandleSetText replaces the panel text
func (h *WorkspaceHandlerImpl) HandleSetText(c echo.Context) error {
	var req setTextRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	h.panel.SetText(req.Text)
	return c.JSON(http.StatusOK, h.response())
}

// HandleSelectFile attaches a multipart "file" part. The declared part type is
// what the panel validates, like a browser file picker; content is sniffed
// only when no useful type was declared.
func (h *WorkspaceHandlerImpl) HandleSelectFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}

	f, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}

	mimeType := fh.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		if mimeType, err = upload.Detect(bytes.NewReader(data)); err != nil {
			return NewBadRequestError("failed to detect file type", err)
		}
		if upload.IsPDF(mimeType) {
			mimeType = upload.PDFMimeType
		}
	}

	rules := h.panel.Rules()
	err = h.panel.SelectFile(submission.BytesSelection(fh.Filename, mimeType, data))
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		h.metrics.ObserveSubmission(metrics.OutcomeRejected)
		return NewUnsupportedMediaTypeError(submission.UserMessage(err, rules))
	case errors.Is(err, upload.ErrFileTooLarge):
		h.metrics.ObserveSubmission(metrics.OutcomeRejected)
		return NewPayloadTooLargeError(submission.UserMessage(err, rules))
	case err != nil:
		return NewInternalError("failed to select file", err)
	}
	return c.JSON(http.StatusOK, h.response())
}

// HandleClearFile removes the attachment
func (h *WorkspaceHandlerImpl) HandleClearFile(c echo.Context) error {
	h.panel.ClearFile()
	return c.JSON(http.StatusOK, h.response())
}

// HandleSubmit sends the panel contents to the concept map endpoint. The new
// graph reaches diagram clients through the store; the response carries it
// too.
func (h *WorkspaceHandlerImpl) HandleSubmit(c echo.Context) error {
	graph, err := h.panel.Submit(c.Request().Context())
	if err != nil {
		return h.submitError(err)
	}
	h.metrics.ObserveSubmission(metrics.OutcomeSuccess)
	return c.JSON(http.StatusOK, submitResponse{Graph: graph})
}

func (h *WorkspaceHandlerImpl) submitError(err error) error {
	msg := submission.UserMessage(err, h.panel.Rules())

	var statusErr *submission.StatusError
	var transportErr *submission.TransportError
	switch {
	case errors.Is(err, submission.ErrEmptyText):
		h.metrics.ObserveSubmission(metrics.OutcomeEmpty)
		return NewValidationError("text")
	case errors.Is(err, submission.ErrBusy):
		h.metrics.ObserveSubmission(metrics.OutcomeBusy)
		return NewConflictError(msg)
	case errors.As(err, &statusErr):
		h.metrics.ObserveSubmission(metrics.OutcomeHTTPError)
		return NewBadGatewayError(msg, err)
	case errors.Is(err, submission.ErrMalformedResponse):
		h.metrics.ObserveSubmission(metrics.OutcomeMalformed)
		return NewBadGatewayError(msg, err)
	case errors.As(err, &transportErr):
		h.metrics.ObserveSubmission(metrics.OutcomeTransport)
		return NewBadGatewayError(msg, err)
	default:
		h.logger.Error("Unexpected submission error", zap.Error(err))
		return NewInternalError(msg, err)
	}
}

func (h *WorkspaceHandlerImpl) response() workspaceResponse {
	rules := h.panel.Rules()
	return workspaceResponse{
		State:           h.panel.State(),
		Endpoint:        h.endpoint,
		AllowedMimeType: rules.AllowedMimeType,
		MaxFileSize:     rules.MaxSize,
	}
}
