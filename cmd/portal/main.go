package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"

	"elstudio.app/internal/api"
	"elstudio.app/internal/obs"
	"elstudio.app/internal/web"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	backendURL := os.Getenv("ELSTUDIO_BACKEND_URL")
	if backendURL == "" {
		log.Fatal("ELSTUDIO_BACKEND_URL is required")
	}
	client, err := api.NewClient(backendURL)
	if err != nil {
		log.Fatalf("backend client: %v", err)
	}

	addr := os.Getenv("ELSTUDIO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	codec := securecookie.New(cookieKey("ELSTUDIO_COOKIE_HASH_KEY", 64), cookieKey("ELSTUDIO_COOKIE_BLOCK_KEY", 32))

	srv := &http.Server{
		Addr:              addr,
		Handler:           web.New(client, codec, version).Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting elstudio-portal %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

// cookieKey reads a key from the environment, falling back to a random key.
// A random key means sessions do not survive a restart; fine for dev, set
// both keys in production.
func cookieKey(env string, size int) []byte {
	if v := os.Getenv(env); v != "" {
		return []byte(v)
	}
	log.Printf("%s not set, using an ephemeral key", env)
	return securecookie.GenerateRandomKey(size)
}
