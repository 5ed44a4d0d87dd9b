package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/crm-dedupe/internal/config"
	"github.com/sells-group/crm-dedupe/internal/dedupe"
	"github.com/sells-group/crm-dedupe/internal/diag"
	"github.com/sells-group/crm-dedupe/internal/export"
	"github.com/sells-group/crm-dedupe/internal/source"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := *cfg
		if servePort > 0 {
			c.Server.Port = servePort
		}
		if err := c.Validate("serve"); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.Server.Port),
			Handler:           buildRouter(&c, &dedupe.Session{}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", c.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// server holds the state shared by the API handlers.
type server struct {
	cfg     *config.Config
	session *dedupe.Session
}

// buildRouter wires the API routes. Only the /v1 routes are rate limited.
func buildRouter(c *config.Config, session *dedupe.Session) http.Handler {
	s := &server{cfg: c, session: session}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := rate.NewLimiter(rate.Limit(c.Server.RateLimit), max(c.Server.Burst, 1))
	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(limiter))
		r.Post("/dedupe", s.handleDedupe)
		r.Get("/results/{set}", s.handleResults)
	})

	return r
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// dedupeResponse is the JSON body of a successful POST /v1/dedupe.
type dedupeResponse struct {
	RunID       string            `json:"run_id"`
	Header      []string          `json:"header"`
	Uniques     []source.Record   `json:"uniques"`
	Duplicates  []source.Record   `json:"duplicates"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Stats       dedupe.Stats      `json:"stats"`
}

func newDedupeResponse(res *dedupe.Result) dedupeResponse {
	resp := dedupeResponse{
		RunID:       res.RunID,
		Header:      res.Header,
		Uniques:     res.Uniques,
		Duplicates:  res.Duplicates,
		Diagnostics: res.Diagnostics,
		Stats:       res.Stats,
	}
	if resp.Uniques == nil {
		resp.Uniques = []source.Record{}
	}
	if resp.Duplicates == nil {
		resp.Duplicates = []source.Record{}
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []diag.Diagnostic{}
	}
	return resp
}

func (s *server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	dir, err := os.MkdirTemp("", "crm-dedupe-*")
	if err != nil {
		zap.L().Error("serve: create spool dir", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	crmPath, err := spoolUpload(r, "crm", dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	candPath, err := spoolUpload(r, "candidates", dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := formOverrides(r).apply(s.cfg.Match)
	opts, err := engineOptions(m, s.cfg.Classify.Workers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.session.Process(r.Context(), dedupe.New(opts, diag.LogSink{}), crmPath, candPath)
	if err != nil {
		var serr *source.Error
		if errors.As(err, &serr) {
			writeError(w, http.StatusUnprocessableEntity, serr.Error())
			return
		}
		zap.L().Error("serve: dedupe failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "dedupe failed")
		return
	}

	writeJSON(w, http.StatusOK, newDedupeResponse(res))
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	set := chi.URLParam(r, "set")
	if set != "uniques" && set != "duplicates" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown result set %q", set))
		return
	}

	last := s.session.Last()
	if last == nil {
		writeError(w, http.StatusNotFound, "no result yet")
		return
	}

	records, filename := last.Uniques, s.cfg.Output.UniquesFile
	if set == "duplicates" {
		records, filename = last.Duplicates, s.cfg.Output.DuplicatesFile
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
	w.Header().Set("X-Run-ID", last.RunID)
	if err := export.WriteCSV(w, last.Header, records, outputDelimiter(s.cfg)); err != nil {
		zap.L().Error("serve: write results", zap.String("set", set), zap.Error(err))
	}
}

// spoolUpload copies the multipart file named field into its own directory
// under dir, keeping the uploaded base name so the extension and the name
// shown in diagnostics survive.
func spoolUpload(r *http.Request, field, dir string) (string, error) {
	file, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", eris.Errorf("missing %q file", field)
		}
		return "", eris.Wrapf(err, "read %q file", field)
	}
	defer file.Close()

	name := filepath.Base(hdr.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = field
	}

	sub := filepath.Join(dir, field)
	if err := os.Mkdir(sub, 0o700); err != nil {
		return "", eris.Wrap(err, "spool upload")
	}
	path := filepath.Join(sub, name)

	out, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "spool upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "spool upload")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "spool upload")
	}
	return path, nil
}

// formOverrides reads match overrides from form fields named like the config
// keys.
func formOverrides(r *http.Request) matchOverrides {
	return matchOverrides{
		CRMDelimiter:       r.FormValue("crm_delimiter"),
		CRMLastName:        r.FormValue("crm_last_name_column"),
		CRMFirstName:       r.FormValue("crm_first_name_column"),
		CandidateName:      r.FormValue("candidate_name_column"),
		CandidateForename:  r.FormValue("candidate_forename_column"),
		CandidateDelimiter: r.FormValue("candidate_csv_delimiter"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
