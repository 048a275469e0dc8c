package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/prepdeck/prepdeck/config"
	"github.com/prepdeck/prepdeck/internal/api/handlers"
	"github.com/prepdeck/prepdeck/internal/api/middleware"
	"github.com/prepdeck/prepdeck/internal/api/routes"
	"github.com/prepdeck/prepdeck/internal/cache"
	"github.com/prepdeck/prepdeck/internal/generation"
	"github.com/prepdeck/prepdeck/internal/logger"
	"github.com/prepdeck/prepdeck/internal/providers/avatar"
	"github.com/prepdeck/prepdeck/internal/providers/capture"
	"github.com/prepdeck/prepdeck/internal/providers/reasoning"
	"github.com/prepdeck/prepdeck/internal/providers/speechsynth"
	"github.com/prepdeck/prepdeck/internal/providers/transcribe"
	mongorepo "github.com/prepdeck/prepdeck/internal/repositories/mongo"
	pgrepo "github.com/prepdeck/prepdeck/internal/repositories/postgres"
	"github.com/prepdeck/prepdeck/internal/services"
	"github.com/prepdeck/prepdeck/internal/storage"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx := context.Background()

	avail := config.DetectAvailability()
	l.WithFields(logrus.Fields{
		"reasoning":     avail.Reasoning,
		"transcription": avail.Transcription,
		"storage":       avail.Storage,
		"speech":        avail.Speech,
		"avatar":        avail.Avatar,
	}).Info("service availability")

	// MongoDB is the session source of truth; nothing works without it.
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	l.Info("MongoDB connected")

	// Postgres archive and Redis cache are best-effort; the interview flow
	// degrades without them.
	var archive pgrepo.ArchiveRepo
	if err := config.InitPostgres(); err != nil {
		l.WithError(err).Warn("PostgreSQL unavailable; response archive disabled")
	} else {
		archive = pgrepo.NewArchiveRepo(config.PostgresDB)
		l.Info("PostgreSQL connected")
	}

	var reportCache cache.Cache
	if err := config.InitRedis(); err != nil {
		l.WithError(err).Warn("Redis unavailable; report cache disabled")
	} else {
		reportCache = cache.NewRedisCache(config.RedisClient)
		l.Info("Redis connected")
	}

	reasoner := buildReasoner(ctx, avail, l)
	gateway := generation.NewGateway(reasoner, 0, nil, l)

	var uploader storage.Uploader
	if avail.Storage {
		u, err := storage.NewGCSUploader(ctx, os.Getenv("GCS_BUCKET"))
		if err != nil {
			l.WithError(err).Warn("GCS unavailable; recording artifacts disabled")
		} else {
			uploader = u
			defer u.Close()
		}
	}
	captureProv := &capture.BufferProvider{Uploader: uploader}

	var stt transcribe.Provider = transcribe.Unavailable{Err: errors.New("speech recognition not configured")}
	if avail.Transcription {
		if gs, err := transcribe.NewGoogleSpeech(ctx); err != nil {
			l.WithError(err).Warn("speech recognition unavailable; recording disabled")
		} else {
			stt = gs
			defer gs.Close()
		}
	}

	sessionRepo := mongorepo.NewSessionRepo(config.MongoClient.Database(config.MongoDBName()))
	interviewSvc := services.NewInterviewService(sessionRepo, archive, gateway, reportCache, l)

	speech := speechsynth.NewElevenLabs(os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("ELEVENLABS_VOICE_ID"))
	av := avatar.NewTavus(os.Getenv("TAVUS_API_KEY"), os.Getenv("TAVUS_REPLICA_ID"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Media:     handlers.NewMediaHandler(speech, av),
		WS:        handlers.NewWSHandler(interviewSvc, captureProv, stt, l),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildReasoner picks the reasoning backend for the configured/fallback split
// recorded in avail: Vertex first, then a DeepSeek-compatible endpoint, else
// nil so the gateway runs on fallbacks.
func buildReasoner(ctx context.Context, avail config.ServiceAvailability, l *logrus.Logger) reasoning.Provider {
	if !avail.Reasoning {
		l.Info("no reasoning backend configured; using deterministic generation")
		return nil
	}

	if project := os.Getenv("VERTEX_PROJECT_ID"); project != "" {
		location := os.Getenv("VERTEX_LOCATION")
		if location == "" {
			location = "us-central1"
		}
		v, err := reasoning.NewVertexGemini(ctx, project, location, os.Getenv("VERTEX_MODEL"))
		if err != nil {
			l.WithError(err).Warn("Vertex AI init failed; trying next reasoning backend")
		} else {
			return v
		}
	}

	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		return reasoning.NewDeepSeek(key, os.Getenv("DEEPSEEK_BASE_URL"), os.Getenv("DEEPSEEK_MODEL"))
	}

	l.Warn("reasoning backends failed to initialize; using deterministic generation")
	return nil
}
