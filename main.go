package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/studysphere/studysphere/api"
	"github.com/studysphere/studysphere/blob/s3blob"
	"github.com/studysphere/studysphere/cache/redis"
	"github.com/studysphere/studysphere/mq/sqsmq"
	"github.com/studysphere/studysphere/store/dynamo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable   = "StudySphere"
	SQSXPAwardQueue = "XPAwardQueue"
	DefaultS3Bucket = "studysphere-uploads"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	studyStore, err := dynamo.NewDynamoStudyStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	awardQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSXPAwardQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	studyCache, err := redis.NewRedisStudyCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = DefaultS3Bucket
	}
	blobStore, err := s3blob.NewS3BlobStore(ctx, devMode, os.Getenv("S3_ENDPOINT"), bucket)
	if err != nil {
		log.Fatalf("Failed to create s3 blob store: %v", err)
	}

	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	studyAPI, err := api.NewStudyAPI(studyStore, studyCache, blobStore, awardQueue, oauthConfigs, jwtSecret, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create study sphere api: %v", err)
	}

	mux := http.NewServeMux()
	studyAPI.RegisterRoutes(mux, os.Getenv("ALLOWED_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}
