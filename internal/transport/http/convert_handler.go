package http

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "todocx/internal/errors"
	"todocx/internal/files"
	"todocx/internal/middleware"
	"todocx/internal/services"
)

// ConvertHandler handles conversion and download requests
type ConvertHandler struct {
	service   ConversionService
	outputDir string
	validator *middleware.Validator
	errors    *apperrors.ErrorHandler
	logger    *slog.Logger
}

// NewConvertHandler creates a handler serving downloads from outputDir
func NewConvertHandler(service ConversionService, outputDir string, validator *middleware.Validator, errHandler *apperrors.ErrorHandler, logger *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		service:   service,
		outputDir: outputDir,
		validator: validator,
		errors:    errHandler,
		logger:    logger.With(slog.String("handler", "convert")),
	}
}

// Routes returns a chi router for conversion endpoints
func (h *ConvertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/file", h.ConvertFile)
	r.Get("/download/{filename}", h.Download)
	return r
}

// ConvertFile handles POST /api/convert/file
func (h *ConvertHandler) ConvertFile(w http.ResponseWriter, r *http.Request) {
	var req services.ConvertRequest
	if err := h.validator.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Convert(r.Context(), req)
	if err != nil {
		if isGateRefusal(err) {
			h.logger.InfoContext(r.Context(), "Conversion refused by gate", slog.String("reason", err.Error()))
		}
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Download handles GET /api/convert/download/{filename}
func (h *ConvertHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := files.JoinBase(h.outputDir, name)
	if err != nil {
		h.errors.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		h.errors.HandleError(w, r, apperrors.NotFoundError("File"))
		return
	}
	if err != nil {
		h.errors.HandleError(w, r, apperrors.FileSystemError("download", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.errors.HandleError(w, r, apperrors.NotFoundError("File"))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
