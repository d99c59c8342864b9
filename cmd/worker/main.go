package main

import (
	"context"
	"log"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"wardrobeapi/dbhelper"
	"wardrobeapi/services"
	"wardrobeapi/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         os.Getenv("SENTRY_DSN"),
		Environment: services.GetEnv("ENV", "local"),
		Release:     "wardrobeapi@1.0.0",
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"generate": 7,
		}},
	)
	awsService := &services.AWSService{}
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	embedder := &services.GoogleEmbeddingService{DescribeModel: services.Flash25}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}

	db := dbhelper.SetupDB()
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeWardrobeProcessItem, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleProcessWardrobeItemTask(ctx, t, db, embedder, awsService, app)
	})

	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
