package parser

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name              string
		input             string
		expectedQuestions int
		expectedQ         string
		expectedOptions   []string
		expectedAnswer    string
		expectedE         string
		expectedDomain    string
	}{
		{
			name:              "Simple question",
			input:             "Q: What does the I in CIA stand for?\nO: Identity\nO: Integrity\nA: b",
			expectedQuestions: 1,
			expectedQ:         "What does the I in CIA stand for?",
			expectedOptions:   []string{"Identity", "Integrity"},
			expectedAnswer:    "b",
		},
		{
			name: "All fields with multiline explanation",
			input: `
Q: Which control type is security awareness training?
O: Technical
O: Physical
O: Administrative
A: C
E: Training governs how people act.
It is a managerial control.
C: General Security Concepts
`,
			expectedQuestions: 1,
			expectedQ:         "Which control type is security awareness training?",
			expectedOptions:   []string{"Technical", "Physical", "Administrative"},
			expectedAnswer:    "c",
			expectedE:         "Training governs how people act.\nIt is a managerial control.",
			expectedDomain:    "General Security Concepts",
		},
		{
			name: "Multiline question",
			input: `
Q: An attacker sends crafted packets.
Which attack is this?
O: Spoofing
O: Phishing
A: a
`,
			expectedQuestions: 1,
			expectedQ:         "An attacker sends crafted packets.\nWhich attack is this?",
			expectedOptions:   []string{"Spoofing", "Phishing"},
			expectedAnswer:    "a",
		},
		{
			name: "Two questions",
			input: `
Q: First question
O: yes
O: no
A: a

Q: Second question
O: yes
O: no
A: b
`,
			expectedQuestions: 2,
		},
		{
			name: "Separator ends a question",
			input: `
Q: First question
O: yes
O: no
A: a
---
Stray prose between questions.
Q: Second question
O: yes
O: no
A: b
`,
			expectedQuestions: 2,
		},
		{
			name:              "No questions, just text",
			input:             "This is a file with no questions.",
			expectedQuestions: 0,
		},
		{
			name:              "Prefixes with no space",
			input:             "Q:Question\nO:One\nO:Two\nA:a",
			expectedQuestions: 1,
			expectedQ:         "Question",
			expectedOptions:   []string{"One", "Two"},
			expectedAnswer:    "a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			questions, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(questions) != tc.expectedQuestions {
				t.Fatalf("Expected %d questions, but got %d", tc.expectedQuestions, len(questions))
			}

			if tc.expectedQuestions == 1 {
				q := questions[0]
				if q.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, q.Question)
				}
				if len(q.Options) != len(tc.expectedOptions) {
					t.Fatalf("Expected %d options, but got %d", len(tc.expectedOptions), len(q.Options))
				}
				for i, text := range tc.expectedOptions {
					if q.Options[i].Text != text {
						t.Errorf("Expected option %d to be '%s', but got '%s'", i, text, q.Options[i].Text)
					}
					if want := string(rune('a' + i)); q.Options[i].ID != want {
						t.Errorf("Expected option %d to have ID '%s', but got '%s'", i, want, q.Options[i].ID)
					}
				}
				if q.CorrectAnswer != tc.expectedAnswer {
					t.Errorf("Expected CorrectAnswer to be '%s', but got '%s'", tc.expectedAnswer, q.CorrectAnswer)
				}
				if q.Explanation != tc.expectedE {
					t.Errorf("Expected Explanation to be '%s', but got '%s'", tc.expectedE, q.Explanation)
				}
				if q.Domain != tc.expectedDomain {
					t.Errorf("Expected Domain to be '%s', but got '%s'", tc.expectedDomain, q.Domain)
				}
			}
		})
	}
}

func TestParseSkipsMalformedQuestions(t *testing.T) {
	input := `
Q: Only one option
O: lonely
A: a

Q: Answer out of range
O: one
O: two
A: d

Q: No answer
O: one
O: two

Q: Good question
O: one
O: two
A: b
`
	questions, err := Parse(strings.NewReader(input))
	if len(questions) != 1 || questions[0].Question != "Good question" {
		t.Fatalf("Expected only the good question to parse, but got %+v", questions)
	}
	if err == nil {
		t.Fatal("Expected an error describing the malformed questions")
	}
	if !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("Expected malformed questions to wrap ErrInvalidQuestion, but got: %v", err)
	}
	for _, want := range []string{"line 2", "line 6", "line 11", "at least 2 options", "does not match", "missing answer"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, but got: %v", want, err)
		}
	}
}

func TestParseFile(t *testing.T) {
	fsys := fstest.MapFS{
		"decks/net.md": {Data: []byte("Q: Port for HTTPS?\nO: 80\nO: 443\nA: b\nC: Networking\n")},
	}

	questions, err := ParseFile(fsys, "decks/net.md")
	if err != nil {
		t.Fatalf("ParseFile() returned an unexpected error: %v", err)
	}
	if len(questions) != 1 || questions[0].Domain != "Networking" {
		t.Errorf("Expected one Networking question, but got %+v", questions)
	}

	_, err = ParseFile(fsys, "missing.md")
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("Expected a read error, not an invalid question, but got: %v", err)
	}
}

func TestParseLongLine(t *testing.T) {
	long := strings.Repeat("x", 70*1024)
	input := "Q: Port for HTTPS?\nO: 80\nO: 443\nA: b\nE: " + long + "\n"

	questions, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Expected a 70 KB line to parse, but got: %v", err)
	}
	if len(questions) != 1 || len(questions[0].Explanation) != len(long) {
		t.Errorf("Expected one question with the long explanation, but got %d questions", len(questions))
	}
}
