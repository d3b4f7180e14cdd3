// handlers_backend.go - Concept map generation endpoints
package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/conceptmap"
	"github.com/concept-map/backend/internal/history"
	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/storage"
	"github.com/concept-map/backend/internal/upload"
)

// BackendHandlerImpl implements BackendHandler. Its responses keep the
// {"success":true,"graph":...} and {"error":...} shapes the input panel
// expects rather than APIError.
type BackendHandlerImpl struct {
	generator Generator
	store     storage.Store
	history   HistoryStore
	metrics   *metrics.Collector
	maxSize   int64
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewBackendHandler creates a new backend handler. history and collector may
// be nil.
func NewBackendHandler(gen Generator, store storage.Store, hist HistoryStore, collector *metrics.Collector, maxSize int64, logger *zap.Logger) BackendHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = upload.MaxFileSize
	}
	return &BackendHandlerImpl{
		generator: gen,
		store:     store,
		history:   hist,
		metrics:   collector,
		maxSize:   maxSize,
		validate:  validator.New(),
		logger:    logger.Named("backend"),
	}
}

type sendTextRequest struct {
	Text string `json:"text" validate:"required"`
}

// HandleSendData accepts multipart form data with a text field and an
// optional PDF file.
func (h *BackendHandlerImpl) HandleSendData(c echo.Context) error {
	text := c.FormValue("text")

	var pdfPath string
	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return sendError(c, http.StatusBadRequest, fmt.Errorf("reading form: %w", err))
	default:
		info, err := h.saveDocument(fh)
		if err != nil {
			return sendError(c, http.StatusBadRequest, err)
		}
		if pdfPath, err = h.store.GetFilePath(info.ID); err != nil {
			return sendError(c, http.StatusInternalServerError, err)
		}
		defer func() {
			if err := h.store.MarkProcessed(info.ID); err != nil {
				h.logger.Warn("Failed to mark upload processed", zap.String("id", info.ID), zap.Error(err))
			}
		}()
	}

	return h.generate(c, history.SourceSendData, conceptmap.Request{Text: text, PDFPath: pdfPath})
}

// HandleSendText accepts {"text": "..."}.
func (h *BackendHandlerImpl) HandleSendText(c echo.Context) error {
	var req sendTextRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	}
	if err := h.validate.Struct(req); err != nil {
		return sendError(c, http.StatusBadRequest, errors.New("text is required"))
	}
	return h.generate(c, history.SourceSendText, conceptmap.Request{Text: req.Text})
}

func (h *BackendHandlerImpl) generate(c echo.Context, source string, req conceptmap.Request) error {
	ctx := c.Request().Context()

	res, err := h.generator.Generate(ctx, req)
	if err != nil {
		h.metrics.ObserveGeneration(source, err, 0, 0, 0)
		h.logger.Warn("Generation failed", zap.String("endpoint", source), zap.Error(err))
		return sendError(c, http.StatusInternalServerError, err)
	}
	h.metrics.ObserveGeneration(source, nil, res.Duration, len(res.Graph.Nodes), len(res.Graph.Edges))

	if h.history != nil {
		if _, err := h.history.Record(ctx, source, req.Text, res.Graph); err != nil {
			h.logger.Warn("Failed to record graph in history", zap.Error(err))
		}
	}

	return c.JSON(http.StatusOK, models.SendDataResponse{Success: true, Graph: res.Graph})
}

// saveDocument checks the upload is a PDF within the size limit, sniffing
// the content rather than trusting the declared type, and stores it.
func (h *BackendHandlerImpl) saveDocument(fh *multipart.FileHeader) (*models.FileInfo, error) {
	if fh.Size > h.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", upload.ErrFileTooLarge, fh.Filename, fh.Size)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	mimeType, err := upload.Detect(f)
	if err != nil {
		return nil, err
	}
	if !upload.IsPDF(mimeType) {
		return nil, fmt.Errorf("%w: %s is %s", upload.ErrUnsupportedType, fh.Filename, mimeType)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewinding upload: %w", err)
	}

	info, err := h.store.Save(fh.Filename, mimeType, f)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("Stored uploaded document",
		zap.String("id", info.ID),
		zap.String("name", info.Name),
		zap.Int64("size", info.Size))
	return info, nil
}

func sendError(c echo.Context, status int, err error) error {
	return c.JSON(status, models.ErrorResponse{Error: err.Error()})
}
