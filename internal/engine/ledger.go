package engine

import "github.com/uniquiz/quiz-client/internal/model"

// Ledger maps question IDs to selected option IDs. Re-selecting replaces the
// previous choice; there is never more than one entry per question. The
// engine guards when mutation is allowed — the ledger itself is a pure map.
type Ledger struct {
	selections map[string]string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{selections: make(map[string]string)}
}

// Set records the selected option for a question, replacing any previous
// selection.
func (l *Ledger) Set(questionID, optionID string) {
	l.selections[questionID] = optionID
}

// Get returns the current selection for a question, if any.
func (l *Ledger) Get(questionID string) (string, bool) {
	optionID, ok := l.selections[questionID]
	return optionID, ok
}

// Answered returns the number of questions with a selection.
func (l *Ledger) Answered() int {
	return len(l.selections)
}

// Serialize builds the submission payload: exactly one entry per question,
// in the attempt's question order. Unanswered questions carry an empty
// selection so the server knows every question that was presented.
func (l *Ledger) Serialize(questions []model.Question) []model.Answer {
	answers := make([]model.Answer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, model.Answer{
			QuestionID:       q.ID,
			SelectedOptionID: l.selections[q.ID],
		})
	}
	return answers
}
