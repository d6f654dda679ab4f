package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uniquiz/quiz-client/internal/model"
)

func questionSeq(ids ...string) []model.Question {
	questions := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, model.Question{ID: id})
	}
	return questions
}

func TestLedgerLastSelectionWins(t *testing.T) {
	ledger := NewLedger()

	ledger.Set("q1", "a")
	ledger.Set("q1", "b")
	ledger.Set("q1", "c")

	got, ok := ledger.Get("q1")
	require.True(t, ok)
	require.Equal(t, "c", got)
	require.Equal(t, 1, ledger.Answered())

	answers := ledger.Serialize(questionSeq("q1"))
	require.Equal(t, []model.Answer{{QuestionID: "q1", SelectedOptionID: "c"}}, answers)
}

func TestLedgerSerializeCoversEveryQuestionInOrder(t *testing.T) {
	ledger := NewLedger()
	ledger.Set("q3", "b")
	ledger.Set("q1", "a")

	answers := ledger.Serialize(questionSeq("q1", "q2", "q3", "q4"))

	require.Equal(t, []model.Answer{
		{QuestionID: "q1", SelectedOptionID: "a"},
		{QuestionID: "q2", SelectedOptionID: ""},
		{QuestionID: "q3", SelectedOptionID: "b"},
		{QuestionID: "q4", SelectedOptionID: ""},
	}, answers)
}

func TestLedgerSerializeEmpty(t *testing.T) {
	ledger := NewLedger()

	answers := ledger.Serialize(questionSeq("q1", "q2"))

	require.Len(t, answers, 2)
	for _, a := range answers {
		require.Empty(t, a.SelectedOptionID)
	}
}
