package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tomgalvin.uk/labelle/api"
	"tomgalvin.uk/labelle/internal/bitmap"
	"tomgalvin.uk/labelle/internal/calibration"
	"tomgalvin.uk/labelle/internal/compose"
	"tomgalvin.uk/labelle/internal/device"
	"tomgalvin.uk/labelle/internal/label"
	"tomgalvin.uk/labelle/internal/model"
	"tomgalvin.uk/labelle/internal/preview"
	"tomgalvin.uk/labelle/internal/printer"
	"tomgalvin.uk/labelle/internal/render"
)

var _ api.StrictServerInterface = (*Server)(nil)

type Server struct {
	Registry     *device.Registry
	Calibrations *calibration.Store
	Compositor   *compose.Compositor
	Printer      *printer.Printer
	// Used when a request doesn't name a device or tape.
	DefaultDevice string
	DefaultTapeMm int

	logger *slog.Logger
}

func NewServer(logger *slog.Logger, registry *device.Registry, store *calibration.Store, compositor *compose.Compositor, pr *printer.Printer) *Server {
	return &Server{
		Registry:      registry,
		Calibrations:  store,
		Compositor:    compositor,
		Printer:       pr,
		DefaultTapeMm: 12,
		logger:        logger,
	}
}

// Router serves the API under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	sh := api.NewStrictHandler(s, nil)
	api.RegisterHandlersWithOptions(r.Group("/api"), sh, api.GinServerOptions{
		ErrorHandler: func(c *gin.Context, err error, status int) {
			c.JSON(status, model.FromError(err, "", false))
		},
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		s.logger.Log(c.Request.Context(), level, "HTTP request", attrs...)
	}
}

func (s *Server) GetDevices(ctx context.Context, request api.GetDevicesRequestObject) (api.GetDevicesResponseObject, error) {
	filter := ""
	if request.Params.Filter != nil {
		filter = *request.Params.Filter
	}
	return api.GetDevices200JSONResponse(model.FromProfiles(s.Registry.Match(filter))), nil
}

func (s *Server) GetCalibrations(ctx context.Context, request api.GetCalibrationsRequestObject) (api.GetCalibrationsResponseObject, error) {
	return api.GetCalibrations200JSONResponse(model.FromCalibrations(s.Calibrations.List())), nil
}

// GetCalibration returns the calibration a print would use, falling back to
// the default when nothing is known for the pair.
func (s *Server) GetCalibration(ctx context.Context, request api.GetCalibrationRequestObject) (api.GetCalibrationResponseObject, error) {
	p, err := s.Registry.ByModel(request.Model)
	if err != nil {
		status, body := s.errorResponse(err)
		return api.GetCalibrationdefaultJSONResponse{Body: body, StatusCode: status}, nil
	}
	if request.Tape <= 0 {
		status, body := s.errorResponse(fmt.Errorf("%w: tape width must be a positive number of millimetres", ErrInvalidRequest))
		return api.GetCalibrationdefaultJSONResponse{Body: body, StatusCode: status}, nil
	}
	return api.GetCalibration200JSONResponse(model.FromCalibration(s.Calibrations.Lookup(p, request.Tape))), nil
}

// PreviewLabel responds with the composed label as a PNG, exactly as it
// would be sent to the print head.
func (s *Server) PreviewLabel(ctx context.Context, request api.PreviewLabelRequestObject) (api.PreviewLabelResponseObject, error) {
	b, _, _, err := s.compose(request.Body)
	if err != nil {
		status, body := s.errorResponse(err)
		return api.PreviewLabeldefaultJSONResponse{Body: body, StatusCode: status}, nil
	}
	var buf bytes.Buffer
	if err := (&preview.PNGSink{W: &buf}).Output(ctx, b); err != nil {
		return nil, fmt.Errorf("Couldn't encode preview:\n%w", err)
	}
	return api.PreviewLabel200ImagepngResponse{Body: &buf, ContentLength: int64(buf.Len())}, nil
}

// PrintLabel prints the composed label. A client going away doesn't stop a
// label the printer has started.
func (s *Server) PrintLabel(ctx context.Context, request api.PrintLabelRequestObject) (api.PrintLabelResponseObject, error) {
	b, p, tape, err := s.compose(request.Body)
	if err == nil {
		err = s.Printer.Print(context.WithoutCancel(ctx), p, b)
	}
	if err != nil {
		status, body := s.errorResponse(err)
		return api.PrintLabeldefaultJSONResponse{Body: body, StatusCode: status}, nil
	}
	return api.PrintLabel200JSONResponse{Device: p.Model, TapeMm: tape, Lines: b.Width()}, nil
}

// compose turns a request body into a bitmap for the device it names.
func (s *Server) compose(req *api.LabelRequest) (*bitmap.PixelBitmap, device.Profile, int, error) {
	filter := s.DefaultDevice
	if req.Device != nil && *req.Device != "" {
		filter = *req.Device
	}
	p, err := s.Registry.Resolve(filter)
	if err != nil {
		return nil, device.Profile{}, 0, err
	}
	tape := s.DefaultTapeMm
	if req.TapeMm != nil {
		tape = *req.TapeMm
	}
	if err := s.Calibrations.CheckTape(p, tape); err != nil {
		return nil, device.Profile{}, 0, err
	}

	job, err := mapJobFromJson(req.Nodes)
	if err != nil {
		return nil, device.Profile{}, 0, err
	}

	compositor := s.Compositor
	if req.Justify != nil && *req.Justify != "" {
		j, err := label.ParseJustify(*req.Justify)
		if err != nil {
			return nil, device.Profile{}, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		opts := compositor.Options
		opts.Justify = j
		compositor = compose.New(compositor.Renderer, opts)
	}

	b, err := compositor.Compose(job, p, s.Calibrations.Lookup(p, tape))
	if err != nil {
		return nil, device.Profile{}, 0, err
	}
	return b, p, tape, nil
}

func (s *Server) errorResponse(err error) (int, api.ErrorResponse) {
	status, body := errorResponse(err)
	if status >= 500 {
		s.logger.Error("Request failed", "error", err)
	}
	return status, body
}

func errorResponse(err error) (int, api.ErrorResponse) {
	var pe *printer.PermissionError
	if errors.As(err, &pe) {
		return http.StatusForbidden, model.FromError(err, pe.Hint, false)
	}
	body := model.FromError(err, "", printer.IsRetryable(err))

	switch {
	case errors.Is(err, device.ErrUnknownModel), errors.Is(err, printer.ErrDeviceNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, device.ErrAmbiguousModel), errors.Is(err, device.ErrUnsupportedTape),
		errors.Is(err, ErrInvalidNode), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, compose.ErrEmptyJob), errors.Is(err, compose.ErrLabelTooWide),
		errors.Is(err, render.ErrNodeTooTall), errors.Is(err, render.ErrEncoding):
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, printer.ErrDeviceBusy):
		return http.StatusConflict, body
	case errors.Is(err, printer.ErrPrintAborted):
		return http.StatusBadGateway, body
	}
	return http.StatusInternalServerError, body
}
