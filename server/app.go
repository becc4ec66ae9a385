package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitalsp/ai-rakugaki-app/config"
	"github.com/digitalsp/ai-rakugaki-app/internal/db"
	"github.com/digitalsp/ai-rakugaki-app/internal/generator"
	"github.com/digitalsp/ai-rakugaki-app/internal/health"
	"github.com/digitalsp/ai-rakugaki-app/internal/logs"
	"github.com/digitalsp/ai-rakugaki-app/internal/middleware"
	"github.com/digitalsp/ai-rakugaki-app/internal/sketch"
	"github.com/digitalsp/ai-rakugaki-app/internal/ws"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db     *gorm.DB
	svc    *sketch.Service
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) {
	a.cfg = cfg

	// 1) Логи
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) БД + миграции + каталог тем
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	a.db = d
	if err := db.Migrate(a.db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}
	if err := db.SeedTopics(a.db, db.DefaultTopics); err != nil {
		log.Fatalf("topic seeding failed: %v", err)
	}

	// 3) Роутер + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)
	a.Router.Use(middleware.CORS(a.cfg.Server.AllowOrigin))

	health.RegisterRoutesWithDB(a.Router, a.db)

	// 4) Доменные сервисы
	repo := sketch.NewRepo(a.db)
	hub := ws.NewHub()
	gen := generator.NewClient(a.cfg.Generator.Endpoint, generator.Params{
		Steps:             a.cfg.Generator.Steps,
		GuidanceScale:     a.cfg.Generator.GuidanceScale,
		ConditioningScale: a.cfg.Generator.ConditioningScale,
	}, a.cfg.Generator.Timeout)

	a.svc = sketch.NewService(repo, gen, hub,
		a.cfg.Generator.Workers, a.cfg.Generator.QueueSize,
		sketch.Options{
			SavedDir:      a.cfg.Storage.SavedDir,
			GeneratedDir:  a.cfg.Storage.GeneratedDir,
			PublicBaseURL: a.cfg.Storage.PublicBaseURL,
			GenTimeout:    a.cfg.Generator.Timeout,
		})

	sketch.NewHTTP(a.svc).RegisterRoutes(a.Router)
	ws.NewHTTP(hub, repo, a.cfg.Server.AllowOrigin).RegisterRoutes(a.Router)

	// 5) Статика: сохранённые и сгенерированные картинки
	a.registerImageDir("/saved-images/", a.cfg.Storage.SavedDir)
	a.registerImageDir("/generated-images/", a.cfg.Storage.GeneratedDir)

	a.Router.Walk(func(rt *mux.Route, r *mux.Router, ancestors []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		log.Printf("route: %-6v %s", methods, path)
		return nil
	})
}

// registerImageDir отдаёт PNG-файлы директории под заданным префиксом.
func (a *App) registerImageDir(prefix, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("create %s: %v", dir, err)
	}
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	a.Router.PathPrefix(prefix).Handler(fileServer).Methods(http.MethodGet)
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	a.svc.Start(a.ctx)

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	a.svc.Stop()
	return nil
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
