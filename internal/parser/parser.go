package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/conorfennell/examprep/internal/domain"
)

const (
	questionPrefix    = "Q:"
	optionPrefix      = "O:"
	answerPrefix      = "A:"
	explanationPrefix = "E:"
	contextPrefix     = "C:"
)

// ErrInvalidQuestion marks a question that was read but is malformed.
// Parse errors that do not wrap it mean the deck could not be read.
var ErrInvalidQuestion = errors.New("invalid question")

// maxLineBytes bounds a single deck line.
const maxLineBytes = 4 << 20

type state int

const (
	seeking state = iota
	readingQuestion
	readingOption
	readingAnswer
	readingExplanation
	readingContext
)

// ParseFile reads a deck file from fsys and extracts all questions.
func ParseFile(fsys fs.FS, path string) ([]domain.Question, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a question deck and extracts every well-formed question.
//
// A question starts with "Q:" and is followed by two or more "O:" options,
// an "A:" line naming the correct option by letter (a, b, c, ...), and
// optional "E:" explanation and "C:" domain lines. Lines without a prefix
// continue the current field and "---" ends a question.
//
// Malformed questions are skipped; their problems are returned joined in the
// error alongside the questions that did parse.
func Parse(r io.Reader) ([]domain.Question, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var questions []domain.Question
	var problems []error
	var current domain.Question
	var block []string
	currentState := seeking
	lineNo, startLine := 0, 0

	flush := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingOption:
			current.Options[len(current.Options)-1].Text = content
		case readingAnswer:
			current.CorrectAnswer = strings.ToLower(content)
		case readingExplanation:
			current.Explanation = content
		case readingContext:
			current.Domain = content
		}
		block = nil
	}

	finishQuestion := func() {
		flush()
		if current.Question != "" {
			if err := validate(current); err != nil {
				problems = append(problems, fmt.Errorf("%w at line %d: %w", ErrInvalidQuestion, startLine, err))
			} else {
				questions = append(questions, current)
			}
		}
		current = domain.Question{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if line == "---" {
			finishQuestion()
			continue
		}

		prefix, next := matchPrefix(line)
		if prefix == "" {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingQuestion {
			if currentState != seeking { // A new question always starts a new entry
				finishQuestion()
			}
			startLine = lineNo
		} else if currentState == seeking {
			continue // Fields outside a question are ignored
		} else {
			flush()
		}

		if next == readingOption {
			id := string(rune('a' + len(current.Options)))
			current.Options = append(current.Options, domain.Option{ID: id})
		}
		currentState = next

		lineContent := line[len(prefix):]
		if strings.HasPrefix(lineContent, " ") {
			lineContent = lineContent[1:]
		}
		block = append(block, lineContent)
	}

	finishQuestion() // Finish the very last question in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return questions, errors.Join(problems...)
}

func matchPrefix(line string) (string, state) {
	switch {
	case strings.HasPrefix(line, questionPrefix):
		return questionPrefix, readingQuestion
	case strings.HasPrefix(line, optionPrefix):
		return optionPrefix, readingOption
	case strings.HasPrefix(line, answerPrefix):
		return answerPrefix, readingAnswer
	case strings.HasPrefix(line, explanationPrefix):
		return explanationPrefix, readingExplanation
	case strings.HasPrefix(line, contextPrefix):
		return contextPrefix, readingContext
	}
	return "", seeking
}

func validate(q domain.Question) error {
	if len(q.Options) < 2 {
		return fmt.Errorf("needs at least 2 options, got %d", len(q.Options))
	}
	if len(q.Options) > 26 {
		return fmt.Errorf("too many options: %d", len(q.Options))
	}
	for _, o := range q.Options {
		if o.Text == "" {
			return fmt.Errorf("option %s is empty", o.ID)
		}
	}
	if q.CorrectAnswer == "" {
		return errors.New("missing answer")
	}
	for _, o := range q.Options {
		if o.ID == q.CorrectAnswer {
			return nil
		}
	}
	return fmt.Errorf("answer %q does not match any option", q.CorrectAnswer)
}
