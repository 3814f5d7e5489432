package domain

import "fmt"

// Validate checks that every question can be shuffled and scored.
func (b QuestionBank) Validate() error {
	if len(b.Questions) == 0 {
		return fmt.Errorf("%w: bank %q has no questions", ErrInvalidBank, b.ID)
	}
	for i, q := range b.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("%w: question %d has no prompt", ErrInvalidBank, i)
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", ErrInvalidBank, i)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: correct index of question %d is out of range", ErrInvalidBank, i)
		}
		if q.TimeLimit <= 0 {
			return fmt.Errorf("%w: question %d needs a positive time limit", ErrInvalidBank, i)
		}
	}
	return nil
}

// Question returns the question at index.
func (b QuestionBank) Question(index int) (Question, error) {
	if index < 0 || index >= len(b.Questions) {
		return Question{}, ErrQuestionNotFound
	}
	return b.Questions[index], nil
}

// Len is the number of questions.
func (b QuestionBank) Len() int {
	return len(b.Questions)
}
