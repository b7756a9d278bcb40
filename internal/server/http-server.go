package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Syn1ak/notes-api-autotest/internal/models"
	"github.com/Syn1ak/notes-api-autotest/internal/store"
	"github.com/Syn1ak/notes-api-autotest/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NoteHandler adapts HTTP requests to store calls. It holds no business
// logic: parse, validate, call the store once, shape the response.
type NoteHandler struct {
	store    store.Store
	validate *validator.Validate
	logger   hclog.Logger
}

func NewNoteHandler(s store.Store, logger hclog.Logger) *NoteHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NoteHandler{
		store:    s,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *NoteHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/notes", h.ListNotes)
	r.POST("/notes", h.CreateNote)
	r.GET("/notes/:id", h.GetNote)
	r.PUT("/notes/:id", h.UpdateNote)
	r.DELETE("/notes/:id", h.DeleteNote)
}

func (h *NoteHandler) ListNotes(c *gin.Context) {
	list, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	observeNoteOperation("list", nil)
	c.JSON(http.StatusOK, list)
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	var req models.CreateNoteRequest
	if err := bindStrictJSON(c, h.validate, &req); err != nil {
		h.fail(c, "create", err)
		return
	}

	note, err := h.store.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	observeNoteOperation("create", nil)
	c.JSON(http.StatusCreated, note)
}

func (h *NoteHandler) GetNote(c *gin.Context) {
	id, err := pathNoteID(c)
	if err != nil {
		h.fail(c, "get", err)
		return
	}

	note, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	observeNoteOperation("get", nil)
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) UpdateNote(c *gin.Context) {
	id, err := pathNoteID(c)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	var req models.UpdateNoteRequest
	if err := bindStrictJSON(c, h.validate, &req); err != nil {
		h.fail(c, "update", err)
		return
	}

	note, err := h.store.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	observeNoteOperation("update", nil)
	c.JSON(http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(c *gin.Context) {
	id, err := pathNoteID(c)
	if err != nil {
		h.fail(c, "delete", err)
		return
	}

	res, err := h.store.Remove(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	observeNoteOperation("delete", nil)
	c.JSON(http.StatusOK, res)
}

func (h *NoteHandler) fail(c *gin.Context, op string, err error) {
	observeNoteOperation(op, err)
	if status.Code(err) == codes.Internal || status.Code(err) == codes.Unknown {
		h.logger.Error("request failed", "op", op, "path", c.Request.URL.Path, "error", err)
	}
	writeError(c, err)
}

func pathNoteID(c *gin.Context) (string, error) {
	id, err := utils.ParseNoteID(c.Param("id"))
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return id, nil
}

type RouterOptions struct {
	CORSEnabled bool
}

// NewRouter wires middleware, the notes routes and /metrics.
func NewRouter(opts RouterOptions, h *NoteHandler, logger hclog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(recoveryMiddleware(logger), requestLogger(logger), metricsMiddleware())
	if opts.CORSEnabled {
		r.Use(corsMiddleware())
	}

	h.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		writeError(c, status.Errorf(codes.NotFound, "Cannot %s %s", c.Request.Method, c.Request.URL.Path))
	})
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, ErrorResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "Cannot " + c.Request.Method + " " + c.Request.URL.Path,
			Error:      http.StatusText(http.StatusMethodNotAllowed),
		})
	})
	return r
}

type HTTPServer struct {
	Addr   string
	srv    *http.Server
	logger hclog.Logger
}

func NewHTTPServer(addr string, handler http.Handler, logger hclog.Logger) *HTTPServer {
	return &HTTPServer{
		Addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *HTTPServer) Run(done chan<- error) {
	s.logger.Info("HTTP server running", "addr", s.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	done <- err
}

func (s *HTTPServer) End(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.srv.Shutdown(ctx)
}
