package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/ingest"
	"github.com/sells-group/weldalign/internal/model"
	"github.com/sells-group/weldalign/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP alignment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		opts, err := newPipelineOptions(cfg)
		if err != nil {
			return err
		}

		api := &apiServer{
			opts:      opts,
			maxUpload: cfg.Server.MaxUploadMB << 20,
		}
		if cfg.Server.SaveRuns {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			api.store = st
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port), zap.Bool("save_runs", api.store != nil))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer serves alignment requests. store is nil when run history is
// disabled.
type apiServer struct {
	opts      pipelineOptions
	store     store.Store
	maxUpload int64
}

// alignResponse is the body of a successful POST /v1/align.
type alignResponse struct {
	*model.Run
	Pairs []model.AlignmentPair `json:"pairs"`
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/align", s.handleAlign)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

// handleHealth reports 503 when the run store is enabled but unreachable.
func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("health: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "store": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleAlign(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	dir, err := os.MkdirTemp("", "weldalign-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create temp dir")
		return
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path1, name1, err := saveUpload(r, "file1", dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	path2, name2, err := saveUpload(r, "file2", dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.opts
	if v := r.FormValue("sheet1"); v != "" {
		opts.Ingest1.Sheet = v
	}
	if v := r.FormValue("sheet2"); v != "" {
		opts.Ingest2.Sheet = v
	}
	opts.Tolerances, err = formTolerances(r, opts.Tolerances)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := runPipeline(r.Context(), path1, path2, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if eris.Is(err, ingest.ErrMissingColumn) || eris.Is(err, ingest.ErrNoAnchors) {
			status = http.StatusUnprocessableEntity
		}
		zap.L().Warn("align request failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	res.Source1.Name, res.Source2.Name = name1, name2

	run := res.Run(opts.Tolerances)
	if s.store != nil {
		if err := s.store.SaveRun(r.Context(), run); err != nil {
			zap.L().Error("save run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save run")
			return
		}
	}

	writeJSON(w, http.StatusOK, alignResponse{Run: run, Pairs: res.Alignment.Pairs})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{Source: q.Get("source")}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+key)
				return
			}
			*dst = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// saveUpload copies a multipart file field into dir and returns the local
// path and the client's file name.
func saveUpload(r *http.Request, field, dir string) (string, string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", "", eris.Errorf("%s is required", field)
	}
	defer f.Close() //nolint:errcheck

	name := filepath.Base(hdr.Filename)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv", ".txt":
	default:
		return "", "", eris.Errorf("%s: unsupported file type %q", field, filepath.Ext(name))
	}

	path := filepath.Join(dir, field+filepath.Ext(name))
	if err := copyTo(path, f); err != nil {
		return "", "", err
	}
	return path, name, nil
}

func copyTo(path string, src multipart.File) error {
	dst, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return eris.Wrap(err, "write upload file")
	}
	return dst.Close()
}

// formTolerances overrides base with any tolerance form fields.
func formTolerances(r *http.Request, base model.Tolerances) (model.Tolerances, error) {
	for name, dst := range map[string]*float64{
		"distance_tol":   &base.Distance,
		"clock_tol":      &base.ClockPosition,
		"length_tol":     &base.Length,
		"width_tol":      &base.Width,
		"depth_tol":      &base.Depth,
		"min_confidence": &base.MinConfidence,
	} {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, eris.Errorf("invalid %s", name)
		}
		*dst = f
	}
	return base, base.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
