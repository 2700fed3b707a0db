package engine

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/model"
)

func rawQuestion(id int64, options string, correct string) model.Question {
	return model.Question{
		ID:             id,
		PaperID:        1,
		QuestionNumber: int(id),
		QuestionText:   "question",
		Options:        json.RawMessage(options),
		CorrectAnswer:  correct,
	}
}

func TestNormalizeOptionShapes(t *testing.T) {
	want := []string{"w", "x", "y", "z"}

	tests := []struct {
		name    string
		options string
		kind    OptionsKind
	}{
		{"list", `["w","x","y","z"]`, OptionsList},
		{"encoded list", `"[\"w\",\"x\",\"y\",\"z\"]"`, OptionsEncodedList},
		{"label map", `{"B":"x","A":"w","D":"z","C":"y"}`, OptionsLabelMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeOptions(json.RawMessage(tt.options))
			if err != nil {
				t.Fatalf("DecodeOptions: %v", err)
			}
			if raw.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", raw.Kind, tt.kind)
			}

			q := Normalize(rawQuestion(1, tt.options, "x"), zerolog.Nop())
			if !slices.Equal(q.Options, want) {
				t.Fatalf("options = %v, want %v", q.Options, want)
			}
			if !q.Scoreable || q.CorrectText != "x" {
				t.Fatalf("correct = %q scoreable=%v", q.CorrectText, q.Scoreable)
			}
		})
	}
}

func TestLabelMapNaturalOrder(t *testing.T) {
	raw, err := DecodeOptions(json.RawMessage(`{"10":"ten","2":"two","1":"one"}`))
	if err != nil {
		t.Fatal(err)
	}
	got, err := raw.Ordered()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"one", "two", "ten"}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLetterResolution(t *testing.T) {
	tests := []struct {
		name      string
		correct   string
		wantText  string
		scoreable bool
	}{
		{"letter B", "B", "x", true},
		{"letter A", "A", "w", true},
		{"letter out of range", "F", "F", false},
		{"literal", "z", "z", true},
		{"literal missing", "nope", "nope", false},
		{"lowercase is literal", "b", "b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Normalize(rawQuestion(1, `["w","x","y","z"]`, tt.correct), zerolog.Nop())
			if q.CorrectText != tt.wantText || q.Scoreable != tt.scoreable {
				t.Fatalf("got (%q, %v), want (%q, %v)", q.CorrectText, q.Scoreable, tt.wantText, tt.scoreable)
			}
		})
	}
}

func TestNormalizeFailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		options string
	}{
		{"bad encoded list", `"not json"`},
		{"null", `null`},
		{"number", `42`},
		{"empty list", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			log := zerolog.New(&buf)

			q := Normalize(rawQuestion(7, tt.options, "A"), log)
			if len(q.Options) != 0 {
				t.Fatalf("options = %v, want empty", q.Options)
			}
			if q.Scoreable {
				t.Fatal("question with no options must not be scoreable")
			}
			if !strings.Contains(buf.String(), "Malformed question data") {
				t.Fatalf("expected warning, log was %q", buf.String())
			}
			if err := Validate(rawQuestion(7, tt.options, "A")); err == nil {
				t.Fatal("Validate should reject malformed options")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(rawQuestion(1, `["a","b"]`, "B")); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}
	err := Validate(rawQuestion(1, `["a","b"]`, "C"))
	if !errors.Is(err, ErrMalformedAnswer) {
		t.Fatalf("err = %v, want ErrMalformedAnswer", err)
	}
	err = Validate(rawQuestion(1, `["a","a"]`, "a"))
	if !errors.Is(err, ErrMalformedAnswer) {
		t.Fatalf("ambiguous literal: err = %v, want ErrMalformedAnswer", err)
	}
}

func TestDisplayOptionsFiltersLeakedSolutions(t *testing.T) {
	long := strings.Repeat("a", 121)
	q := Normalize(rawQuestion(1, `["4","x = 2","Explanation: because","line\nbreak","`+long+`","5"]`, "A"), zerolog.Nop())

	got := DisplayOptions(q, zerolog.Nop())
	if want := []string{"4", "5"}; !slices.Equal(got, want) {
		t.Fatalf("display = %v, want %v", got, want)
	}
	if len(q.Options) != 6 {
		t.Fatalf("filtering must not touch scoring options, got %d", len(q.Options))
	}
	if !IsCorrect(q, "4") {
		t.Fatal("scoring should still use the unfiltered options")
	}
}
