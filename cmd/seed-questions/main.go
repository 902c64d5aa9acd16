package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/examena/examena-backend/internal/config"
	"github.com/examena/examena-backend/internal/database"
	"github.com/examena/examena-backend/internal/logger"
	"github.com/examena/examena-backend/internal/model"
	"github.com/examena/examena-backend/internal/repository"
	"github.com/examena/examena-backend/internal/service"
)

// seedQuestions is the demo question bank inserted by this command.
var seedQuestions = []model.Question{
	{
		Text:  "What is 2 + 2?",
		Marks: 1,
		Options: []model.Option{
			{Text: "3"},
			{Text: "4", IsCorrect: true},
			{Text: "22"},
		},
	},
	{
		Text:  "Which language is this project written in?",
		Marks: 1,
		Options: []model.Option{
			{Text: "Python"},
			{Text: "Java"},
			{Text: "Go", IsCorrect: true},
		},
	},
	{
		Text:  "Which data structure gives O(1) average lookup by key?",
		Marks: 2,
		Options: []model.Option{
			{Text: "Hash table", IsCorrect: true},
			{Text: "Linked list"},
			{Text: "Binary heap"},
		},
	},
	{
		Text:  "What does HTTP status 404 mean?",
		Marks: 1,
		Options: []model.Option{
			{Text: "Server error"},
			{Text: "Not found", IsCorrect: true},
			{Text: "Unauthorized"},
			{Text: "Moved permanently"},
		},
	},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	userService := service.NewUserService(userRepo)

	fmt.Println("=== Seeding Question Bank ===")

	for i := range seedQuestions {
		q := seedQuestions[i]
		if err := questionRepo.Create(ctx, &q); err != nil {
			log.Fatal().Err(err).Str("text", q.Text).Msg("Failed to seed question")
		}
		fmt.Printf("Created question %d: %s\n", q.ID, q.Text)
	}

	// Demo account for local testing.
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	demo := &model.User{
		Email:        "test@example.com",
		FullName:     "Test User",
		PasswordHash: string(hash),
	}
	if err := userService.Create(ctx, demo); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			fmt.Println("Demo user already exists, skipping")
		} else {
			log.Fatal().Err(err).Msg("Failed to seed demo user")
		}
	} else {
		fmt.Printf("Created demo user %s (password: Password123!)\n", demo.Email)
	}

	fmt.Println("Seed complete")
}
