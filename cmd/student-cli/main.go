package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/uniquiz/quiz-client/internal/api"
	"github.com/uniquiz/quiz-client/internal/config"
	"github.com/uniquiz/quiz-client/internal/engine"
	"github.com/uniquiz/quiz-client/internal/logger"
	"github.com/uniquiz/quiz-client/internal/model"
	"github.com/uniquiz/quiz-client/internal/session"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Restore Session ───────────────────────────────────────────────
	store := session.NewStore(cfg.TokenFile)
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("Could not restore saved session")
	}
	sess := session.NewManager(cfg, store, log)
	client := api.NewClient(sess)

	reader := bufio.NewReader(os.Stdin)

	if !sess.Authenticated() {
		if err := login(ctx, sess, reader); err != nil {
			fmt.Println("Login failed:", err)
			return
		}
	}

	if claims, err := sess.Claims(); err == nil && claims.ExpiresAt != nil {
		fmt.Printf("Logged in as %s (token expires %s)\n\n",
			claims.FullName, claims.ExpiresAt.Format(time.Kitchen))
	}

	// ─── Pick Class and Quiz ───────────────────────────────────────────
	class, err := pickClass(ctx, client, reader)
	if err != nil {
		fail(log, err)
		return
	}

	quiz, err := pickQuiz(ctx, client, reader, class.ID)
	if err != nil {
		fail(log, err)
		return
	}

	// ─── Take the Quiz ─────────────────────────────────────────────────
	eng := engine.New(client, engine.WithLogger(log))

	attempt, err := eng.Start(ctx, quiz.ID)
	if err != nil {
		var apiErr *session.APIError
		if errors.As(err, &apiErr) {
			fmt.Println("Unable to start quiz:", apiErr.Message)
			return
		}
		fail(log, err)
		return
	}

	fmt.Printf("\n=== %s ===\n", attempt.Title)
	if remaining, timed := eng.Remaining(); timed {
		fmt.Printf("Time limit: %s — the quiz submits itself when time runs out.\n", formatSeconds(remaining))
	}

	// Timer expiry submits on our behalf; print its outcome and leave.
	go func() {
		outcome := <-eng.AutoSubmitted()
		fmt.Println("\n\nTime is up!")
		if outcome.Err != nil {
			fmt.Println("Automatic submission failed:", outcome.Err)
			fmt.Println("Your answers are preserved; run again to retry.")
			os.Exit(1)
		}
		printResult(outcome.Result)
		os.Exit(0)
	}()

	for i, q := range attempt.Questions {
		if err := askQuestion(eng, reader, i, len(attempt.Questions), q); err != nil {
			if errors.Is(err, engine.ErrAttemptExpired) || errors.Is(err, engine.ErrNotActive) {
				// Auto-submit goroutine takes over.
				select {}
			}
			fail(log, err)
			return
		}
	}

	fmt.Printf("\nAnswered %d of %d questions. Submit? [y/N] ", eng.Answered(), len(attempt.Questions))
	confirm, _ := reader.ReadString('\n')
	if !strings.EqualFold(strings.TrimSpace(confirm), "y") {
		fmt.Println("Abandoned. The attempt stays open on the server until its time limit.")
		eng.Abandon()
		return
	}

	result, err := eng.Submit(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrSubmitInFlight) {
			// The countdown beat us to it; its goroutine prints the result.
			select {}
		}
		fmt.Println("Submission failed:", err)
		fmt.Println("Your answers are preserved. Retry? [y/N] ")
		retry, _ := reader.ReadString('\n')
		if strings.EqualFold(strings.TrimSpace(retry), "y") {
			if result, err = eng.Submit(ctx); err != nil {
				fail(log, err)
				return
			}
		} else {
			return
		}
	}

	printResult(result)
}

func login(ctx context.Context, sess *session.Manager, reader *bufio.Reader) error {
	fmt.Println("=== uni-quiz login ===")

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	fmt.Println() // Newline after password input

	return sess.Login(ctx, email, string(bytePassword))
}

func pickClass(ctx context.Context, client *api.Client, reader *bufio.Reader) (*model.Class, error) {
	classes, err := client.ListClasses(ctx)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, errors.New("you are not enrolled in any class")
	}

	fmt.Println("Your classes:")
	for i, c := range classes {
		fmt.Printf("  %d. %s — %s\n", i+1, c.Name, c.InstructorName)
	}
	idx, err := pickIndex(reader, "Class", len(classes))
	if err != nil {
		return nil, err
	}
	return &classes[idx], nil
}

func pickQuiz(ctx context.Context, client *api.Client, reader *bufio.Reader, classID string) (*model.QuizSummary, error) {
	quizzes, err := client.ListClassQuizzes(ctx, classID)
	if err != nil {
		return nil, err
	}
	if len(quizzes) == 0 {
		return nil, errors.New("no quizzes available in this class")
	}

	fmt.Println("Quizzes:")
	for i, q := range quizzes {
		status := fmt.Sprintf("%d/%d attempts used", q.AttemptsUsed, q.MaxAttempts)
		if !q.IsAvailable {
			status = "unavailable"
		}
		limit := "untimed"
		if q.TimeLimitMinutes != nil {
			limit = fmt.Sprintf("%d min", *q.TimeLimitMinutes)
		}
		fmt.Printf("  %d. %s (%d questions, %s, %s)\n", i+1, q.Title, q.QuestionCount, limit, status)
	}
	idx, err := pickIndex(reader, "Quiz", len(quizzes))
	if err != nil {
		return nil, err
	}
	return &quizzes[idx], nil
}

func askQuestion(eng *engine.Engine, reader *bufio.Reader, i, total int, q model.Question) error {
	fmt.Printf("\nQuestion %d/%d", i+1, total)
	if remaining, timed := eng.Remaining(); timed {
		fmt.Printf("  [%s left]", formatSeconds(remaining))
	}
	fmt.Printf("\n%s\n", q.QuestionText)
	if q.ImageURL != "" {
		fmt.Println("(image:", q.ImageURL+")")
	}
	for _, opt := range q.Options {
		fmt.Printf("  %s. %s\n", strings.ToUpper(opt.ID), opt.Text)
	}

	for {
		fmt.Print("Your answer (option letter, empty to skip): ")
		raw, _ := reader.ReadString('\n')
		choice := strings.ToLower(strings.TrimSpace(raw))
		if choice == "" {
			return nil
		}

		valid := false
		for _, opt := range q.Options {
			if opt.ID == choice {
				valid = true
				break
			}
		}
		if !valid {
			fmt.Println("Not one of the options.")
			continue
		}

		return eng.SelectAnswer(q.ID, choice)
	}
}

func pickIndex(reader *bufio.Reader, label string, n int) (int, error) {
	fmt.Printf("%s number: ", label)
	raw, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 1 || idx > n {
		return 0, fmt.Errorf("pick a number between 1 and %d", n)
	}
	return idx - 1, nil
}

func printResult(result *model.AttemptResult) {
	fmt.Printf("\n=== Result: %s ===\n", result.QuizTitle)
	fmt.Printf("Score: %.1f%% (%d/%d points)\n", result.Score, result.EarnedPoints, result.TotalPoints)
	if result.Passed {
		fmt.Println("PASSED")
	} else {
		fmt.Printf("FAILED (passing score %d%%)\n", result.PassingScore)
	}
	for i, q := range result.Questions {
		mark := "✗"
		if q.IsCorrect {
			mark = "✓"
		}
		fmt.Printf("  %d. %s %s", i+1, mark, q.QuestionText)
		if !q.IsCorrect && q.Explanation != "" {
			fmt.Printf(" — %s", q.Explanation)
		}
		fmt.Println()
	}
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func fail(log zerolog.Logger, err error) {
	if errors.Is(err, session.ErrSessionInvalidated) {
		fmt.Println("Your session has expired. Please run again and log in.")
		return
	}
	log.Error().Err(err).Msg("Command failed")
}
