package main

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vectorhook/app/server"
	"vectorhook/types"

	"github.com/joho/godotenv"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	cfg, err := types.ConfigFromEnv()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		log.Fatal("error to create server: ", err)
	}

	go func() {
		if err := s.Run(); err != nil {
			log.Fatal(err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down server...")
	s.Stop()
}

// mustLoadEnvVariables читает .env, если он есть, иначе хватает
// переменных окружения
func mustLoadEnvVariables() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Error loading .env file: ", err)
	}
}
