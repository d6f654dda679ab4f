package stubserver

import (
	"fmt"

	"github.com/uniquiz/quiz-client/internal/model"
)

// Seed fills the store with a demo dataset: one enrolled student
// (alice@example.com / password123), one class, and three quizzes covering
// the interesting cases (timed with pool sampling, untimed, exhausted
// attempts via max_attempts=1).
func Seed(store *Store, bcryptCost int) error {
	alice, err := store.AddStudent("alice@example.com", "Alice Nguyen", "S-1042", "password123", bcryptCost)
	if err != nil {
		return fmt.Errorf("seed student: %w", err)
	}

	class := store.AddClass("Intro to Databases", "Relational models, SQL, and normalization", "Dr. Mert Yilmaz")
	store.Enroll(alice.ID, class.ID)

	bank := []*Question{
		{
			Text:   "Which SQL clause filters rows after aggregation?",
			Points: 2,
			Options: []model.Option{
				{ID: "a", Text: "WHERE"},
				{ID: "b", Text: "HAVING"},
				{ID: "c", Text: "GROUP BY"},
				{ID: "d", Text: "ORDER BY"},
			},
			CorrectOptionID: "b",
			Explanation:     "HAVING applies to grouped results; WHERE filters before grouping.",
		},
		{
			Text:   "What does a primary key guarantee?",
			Points: 1,
			Options: []model.Option{
				{ID: "a", Text: "Uniqueness and non-null values"},
				{ID: "b", Text: "Faster inserts"},
				{ID: "c", Text: "Automatic indexing of all columns"},
			},
			CorrectOptionID: "a",
		},
		{
			Text:   "Which normal form removes transitive dependencies?",
			Points: 2,
			Options: []model.Option{
				{ID: "a", Text: "1NF"},
				{ID: "b", Text: "2NF"},
				{ID: "c", Text: "3NF"},
			},
			CorrectOptionID: "c",
		},
		{
			Text:   "A foreign key references what?",
			Points: 1,
			Options: []model.Option{
				{ID: "a", Text: "A column in the same row"},
				{ID: "b", Text: "A candidate key of another table"},
				{ID: "c", Text: "An index"},
			},
			CorrectOptionID: "b",
		},
		{
			Text:   "Which isolation level allows dirty reads?",
			Points: 2,
			Options: []model.Option{
				{ID: "a", Text: "READ UNCOMMITTED"},
				{ID: "b", Text: "REPEATABLE READ"},
				{ID: "c", Text: "SERIALIZABLE"},
			},
			CorrectOptionID: "a",
		},
	}

	ids := make([]string, 0, len(bank))
	for _, q := range bank {
		ids = append(ids, store.AddQuestion(q).ID)
	}

	timeLimit := 10
	store.AddQuiz(&Quiz{
		ClassID:          class.ID,
		Title:            "Midterm Practice (timed)",
		Description:      "3 questions sampled from the bank, 10 minutes",
		TimeLimitMinutes: &timeLimit,
		MaxAttempts:      3,
		PoolSize:         3,
		PassingScore:     60,
		Published:        true,
		RandomizeOptions: true,
		QuestionIDs:      ids,
	})
	store.AddQuiz(&Quiz{
		ClassID:      class.ID,
		Title:        "Concept Check (untimed)",
		MaxAttempts:  5,
		PassingScore: 50,
		Published:    true,
		QuestionIDs:  ids[:3],
	})
	store.AddQuiz(&Quiz{
		ClassID:      class.ID,
		Title:        "Final Exam (one shot)",
		MaxAttempts:  1,
		PassingScore: 70,
		Published:    true,
		QuestionIDs:  ids,
	})

	return nil
}
