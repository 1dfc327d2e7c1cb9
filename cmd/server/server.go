package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/thereayou/quickchat/internal/database"
	"github.com/thereayou/quickchat/internal/handlers"
	"github.com/thereayou/quickchat/internal/relay"
	"github.com/thereayou/quickchat/internal/tasks"
	"github.com/thereayou/quickchat/pkg/auth"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Registry   *relay.Registry
	Relay      *relay.Relay
	Dispatcher *tasks.Dispatcher
	Workers    *asynq.Server

	mux *asynq.ServeMux
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	dispatcher, err := tasks.NewDispatcher(redisURL)
	if err != nil {
		log.Fatalf("Task queue init failed: %v", err)
	}

	workers, err := tasks.NewServer(redisURL, 0)
	if err != nil {
		log.Fatalf("Task workers init failed: %v", err)
	}

	mux := asynq.NewServeMux()
	tasks.NewHandlers(dbConn, dispatcher.Client()).Register(mux)

	// Ядро: реестр подписчиков + relay со строгой проверкой членства
	verifier := handlers.NewIdentityVerifier(jwtMgr, dbConn, rdb)
	registry := relay.NewRegistry(verifier, database.NewDirectory(dbConn))
	rl := relay.New(registry, dispatcher)

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	userH := handlers.NewUserHandler(dbConn)
	roomH := handlers.NewRoomHandler(dbConn, registry)
	wsH := handlers.NewWebSocketHandler(handlers.NewEventHandler(registry, rl))

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, userH, roomH, wsH)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		JWTManager: jwtMgr,
		Registry:   registry,
		Relay:      rl,
		Dispatcher: dispatcher,
		Workers:    workers,
		mux:        mux,
	}
}

func (s *Server) Run() {
	if err := s.Workers.Start(s.mux); err != nil {
		log.Fatalf("Task workers start failed: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpSrv := &http.Server{Addr: ":" + port, Handler: s.Router}
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server run error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	s.Workers.Shutdown()
	if err := s.Dispatcher.Close(); err != nil {
		log.Printf("Task queue close error: %v", err)
	}

	log.Println("Server gracefully stopped")
}
