package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	answerapi "studypartner/features/answer"
	"studypartner/features/document"
	"studypartner/features/job"
	"studypartner/features/mcp"
	"studypartner/features/stats"
	"studypartner/internal/config"
	"studypartner/internal/middleware"
	"studypartner/internal/worker"
)

// TaskPublisher is satisfied by *nsq.Producer.
type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler         http.Handler
	Services        *Services
	DocumentService *document.Service
	IngestConsumer  *worker.IngestConsumer
	port            int
}

// New wires the feature handlers over db, the services and the task
// publisher into one HTTP handler.
func New(cfg *config.Config, db *sql.DB, svc *Services, taskPub TaskPublisher, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	documentRepo := document.NewPostgresRepo(db)
	documentService := document.NewService(documentRepo, taskPub, svc.Courses)
	documentHandler := document.NewHandler(documentService, cfg.UploadDir)

	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger).WithDocuments(documentRepo)
	jobHandler := job.NewHandler(jobService)

	statsHandler := stats.NewHandler(documentRepo, jobRepo, svc.Store, svc.Courses)
	answerHandler := answerapi.NewHandler(svc.Answers, svc.Retrieval, svc.Courses)
	mcpHandler := mcp.NewHandler(svc.Answers, svc.Retrieval, svc.Courses)

	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(enableCORS(h))
	}

	mux := http.NewServeMux()

	mux.Handle("OPTIONS /", route(func(w http.ResponseWriter, r *http.Request) {}))

	mux.Handle("GET /courses", route(answerHandler.ListCourses))
	mux.Handle("POST /courses/{course}/answer", route(answerHandler.Ask))
	mux.Handle("GET /courses/{course}/search", route(answerHandler.Search))
	mux.Handle("GET /courses/{course}/files", route(documentHandler.ListCourseFiles))

	mux.Handle("POST /documents", route(documentHandler.Upload))
	mux.Handle("GET /documents", route(documentHandler.List))
	mux.Handle("GET /documents/{id}", route(documentHandler.Get))
	mux.Handle("GET /documents/{id}/file", route(documentHandler.File))

	mux.Handle("GET /jobs/failed", route(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))
	mux.Handle("DELETE /jobs/{id}", route(jobHandler.Discard))

	mux.Handle("GET /stats", route(statsHandler.GetStats))

	mux.Handle("POST /mcp", middleware.CorrelationID(mcpHandler))
	mux.Handle("GET /mcp/sse", route(mcpHandler.HandleSSE))
	mux.Handle("POST /mcp/messages", route(mcpHandler.HandleMessage))

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			slog.Warn("failed to write health response", "error", err)
		}
	})

	consumer := worker.NewIngestConsumer(svc.Pipeline, documentRepo, jobRepo, cfg.IngestTimeout())

	return &App{
		Handler:         mux,
		Services:        svc,
		DocumentService: documentService,
		IngestConsumer:  consumer,
		port:            cfg.ServerPort,
	}
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
