package main

import (
	"log"
	"net/http"

	"attendance-tracker-go/attendance"
	"attendance-tracker-go/config"
	"attendance-tracker-go/db"
	"attendance-tracker-go/handlers"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Remote store client, with a hard timeout per round trip
	client, err := db.NewClient(db.ClientConfig{
		BaseURL:    cfg.SupabaseURL,
		APIKey:     cfg.SupabaseKey,
		HTTPClient: &http.Client{Timeout: cfg.RemoteTimeout},
	})
	if err != nil {
		log.Fatalf("Failed to create store client: %v", err)
	}
	store := db.NewStore(client)

	// Per-date reconciliation lock: shared through Redis when configured,
	// in-process otherwise.
	var (
		rdb    *redis.Client
		locker attendance.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = db.InitializeRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		locker = db.NewRedisLocker(rdb, cfg.LockTTL)
	} else {
		log.Println("REDIS_ADDR not set; attendance marking is serialised per process only")
		locker = db.NewMutexLocker()
	}
	log.Println("The attendance table must carry a unique constraint on (student_id, attendance_date)")

	reconciler := attendance.NewReconciler(store, locker)
	apiHandler := handlers.NewAPIHandler(store, reconciler, rdb)
	router := handlers.NewRouter(apiHandler)

	port := ":" + cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
