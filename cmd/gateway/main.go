package main

import (
	"context"
	"log"
	"net/http"
	"time"

	chromem "github.com/philippgille/chromem-go"

	api "github.com/rubriq/rubriq/internal/api/http"
	auth "github.com/rubriq/rubriq/internal/auth/middleware"
	"github.com/rubriq/rubriq/internal/config"
	"github.com/rubriq/rubriq/internal/db"
	"github.com/rubriq/rubriq/internal/feedback"
	"github.com/rubriq/rubriq/internal/guard"
	"github.com/rubriq/rubriq/internal/llm"
	rbac "github.com/rubriq/rubriq/internal/rbac"
	"github.com/rubriq/rubriq/internal/report"
	"github.com/rubriq/rubriq/internal/rubric"
	"github.com/rubriq/rubriq/internal/search"
	storage "github.com/rubriq/rubriq/internal/storage"
	"github.com/rubriq/rubriq/internal/tutor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	reports := report.NewSQLStore(dbh)

	// --- Courses ---
	courses := rubric.NewCache(cfg.CoursesDir)

	// --- Completion backend + evaluation pipeline ---
	cli := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.OpenAITimeout,
	})
	evalCfg := feedback.Config{
		HintOverridesModel: cfg.HintOverridesModel,
		AlwaysEvaluate:     cfg.AlwaysEvaluateSet(),
		PromptBudget:       cfg.PromptBudget,
	}
	evaluator := feedback.NewEvaluator(cli, evalCfg)
	guards := guard.New(cli, cfg.PromptBudget)
	tut := tutor.New(cli, cfg.PromptBudget)

	var searchSvc *search.Service
	if cfg.EnableSearch {
		searchSvc = search.New(chromem.NewEmbeddingFuncOpenAI(cfg.OpenAIAPIKey, chromem.EmbeddingModelOpenAI(cfg.EmbeddingModel)))
	}

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute)) // evaluations hold several model calls

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.LoginConfig{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
	}))

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		pr.With(rbac.Require("course:list")).
			Get("/courses", api.ListCoursesHandler(courses))
		pr.With(rbac.Require("rubric:view")).
			Get("/courses/{course}/rubric", api.GetRubricHandler(courses))
		pr.With(rbac.Require("rubric:import")).
			Post("/courses/{course}/rubric/import", api.ImportRubricHandler(cfg.CoursesDir))

		pr.With(rbac.Require("eval:create")).
			Post("/courses/{course}/evaluate", api.EvaluateHandler(api.EvaluateDeps{
				Courses:   courses,
				Evaluator: evaluator,
				Guards:    guards,
				Reports:   reports,
				Blobs:     bs,
			}))

		pr.With(rbac.RequireAny("eval:view-own", "eval:view-all")).
			Get("/evaluations", api.ListEvaluationsHandler(reports))
		pr.With(rbac.RequireAny("eval:view-own", "eval:view-all")).
			Get("/evaluations/{id}", api.GetEvaluationHandler(reports))
		pr.With(rbac.RequireAny("eval:view-own", "eval:export")).
			Get("/evaluations/{id}/export", api.ExportEvaluationHandler(reports))

		if searchSvc != nil {
			pr.With(rbac.Require("search:use")).
				Post("/courses/{course}/search", api.SearchCriteriaHandler(searchSvc, courses))
		}

		pr.With(rbac.Require("tutor:use")).
			Post("/tutor/questions", api.TutorQuestionsHandler(tut))
		pr.With(rbac.Require("tutor:use")).
			Post("/tutor/answer", api.TutorAnswerHandler(tut))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:import")).
			Post("/users/bulk", api.ImportRosterHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
		pr.With(rbac.Require("*")).
			Patch("/users/{userID}", api.UpdateUserRoleHandler(dbh))

		pr.Route("/assets", func(ar chi.Router) {
			ar.Use(rbac.Require("eval:view-all"))
			api.MountAssets(ar, bs)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s, courses=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.CoursesDir)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
