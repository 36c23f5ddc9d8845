package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// sampleQuestions holds text, three options and the correct token.
var sampleQuestions = [][5]string{
	{"What is Java?", "A. Coffee", "B. Programming Language", "C. Island", "B"},
	{"Which is not a primitive type?", "A. int", "B. String", "C. boolean", "B"},
	{"What is the main purpose of JVM?", "A. To compile Java code", "B. To provide platform independence", "C. To debug Java programs", "B"},
	{"What is the default value of int?", "A. 0", "B. null", "C. undefined", "A"},
	{"Java is:", "A. Compiled Language", "B. Interpreted Language", "C. Both A and B", "C"},
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

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	exams := service.NewExamService(repository.NewExamRepository(pool), repository.NewExamCache(rdb), log)

	fmt.Println("=== Seeding Sample Exams ===")

	for _, e := range []struct{ id, title string }{
		{"E001", "Programming Basics"},
		{"E002", "Programming Basics2"},
	} {
		_, err := exams.Create(ctx, model.CreateExamRequest{ID: e.id, Title: e.title, PointsPerQuestion: 20}, "seed")
		if errors.Is(err, service.ErrExamExists) {
			fmt.Printf("Exam %s already exists, skipping\n", e.id)
			continue
		}
		if err != nil {
			log.Fatal().Err(err).Str("exam_id", e.id).Msg("Failed to create exam")
		}

		for i, q := range sampleQuestions {
			_, err := exams.AddQuestion(ctx, e.id, model.AddQuestionRequest{
				ID:            fmt.Sprintf("Q%d", i+1),
				QuestionText:  q[0],
				QuestionType:  string(model.QuestionTypeMultipleChoice),
				Options:       []string{q[1], q[2], q[3]},
				CorrectOption: q[4],
				Points:        20,
			})
			if err != nil {
				log.Fatal().Err(err).Str("exam_id", e.id).Int("question", i+1).Msg("Failed to add question")
			}
		}

		if _, err := exams.Publish(ctx, e.id); err != nil {
			log.Fatal().Err(err).Str("exam_id", e.id).Msg("Failed to publish exam")
		}
		fmt.Printf("Seeded and published %s (%d questions)\n", e.id, len(sampleQuestions))
	}
}
