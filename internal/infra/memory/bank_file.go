package memory

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"quiz-room-service/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed banks/default.yaml
var defaultBankYAML []byte

var (
	defaultOnce sync.Once
	defaultBank domain.QuestionBank
	defaultErr  error
)

// DefaultBank is the question bank compiled into the binary.
func DefaultBank() (domain.QuestionBank, error) {
	defaultOnce.Do(func() {
		defaultBank, defaultErr = ParseBank(defaultBankYAML)
	})
	return defaultBank, defaultErr
}

// ParseBank decodes and validates a YAML question bank.
func ParseBank(data []byte) (domain.QuestionBank, error) {
	var bank domain.QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return domain.QuestionBank{}, fmt.Errorf("parse bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return domain.QuestionBank{}, err
	}
	return bank, nil
}

// FileBankLoader reads one bank from a YAML file on every load; wrap it in a BankRepository.
type FileBankLoader struct {
	path string
}

func NewFileBankLoader(path string) *FileBankLoader {
	return &FileBankLoader{path: path}
}

func (l *FileBankLoader) LoadBank(_ context.Context, bankID string) (domain.QuestionBank, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.QuestionBank{}, fmt.Errorf("read bank file: %w", err)
	}
	bank, err := ParseBank(data)
	if err != nil {
		return domain.QuestionBank{}, err
	}
	if bank.ID != bankID {
		return domain.QuestionBank{}, domain.ErrBankNotFound
	}
	return bank, nil
}
