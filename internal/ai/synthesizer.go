package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultSynthesisTimeout = 60 * time.Second

const qaPromptTemplate = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"%s\n\nQuestion: %s\nHelpful Answer:"

// Synthesizer stuffs retrieved passages into a single prompt and asks the generator.
type Synthesizer struct {
	gen     IGenerator
	timeout time.Duration
}

func NewSynthesizer(gen IGenerator, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultSynthesisTimeout
	}
	return &Synthesizer{gen: gen, timeout: timeout}
}

func BuildPrompt(question string, passages []string) string {
	return fmt.Sprintf(qaPromptTemplate, strings.Join(passages, "\n\n"), question)
}

func (s *Synthesizer) Answer(ctx context.Context, question string, passages []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	prompt := BuildPrompt(question, passages)
	start := time.Now()
	out, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generator returned empty answer")
	}
	logutil.GetLogger(ctx).Debug("answer synthesized",
		zap.Int("passages", len(passages)),
		zap.Int("prompt_len", len(prompt)),
		zap.Duration("cost", time.Since(start)),
	)
	return out, nil
}
