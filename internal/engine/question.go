package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/model"
)

// OptionsKind tags the shape options arrived in.
type OptionsKind int

const (
	OptionsEmpty OptionsKind = iota
	OptionsList
	OptionsEncodedList
	OptionsLabelMap
)

func (k OptionsKind) String() string {
	switch k {
	case OptionsList:
		return "list"
	case OptionsEncodedList:
		return "encoded_list"
	case OptionsLabelMap:
		return "label_map"
	default:
		return "empty"
	}
}

// RawOptions is the decoded options union. Exactly one of List, Encoded or
// Labels is meaningful, selected by Kind.
type RawOptions struct {
	Kind    OptionsKind
	List    []string
	Encoded string
	Labels  map[string]string
}

// DecodeOptions classifies a raw JSON options value into the union.
func DecodeOptions(data json.RawMessage) (RawOptions, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RawOptions{Kind: OptionsEmpty}, nil
	}

	switch trimmed[0] {
	case '[':
		list, err := decodeList(trimmed)
		if err != nil {
			return RawOptions{}, err
		}
		return RawOptions{Kind: OptionsList, List: list}, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return RawOptions{}, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		return RawOptions{Kind: OptionsEncodedList, Encoded: s}, nil
	case '{':
		var generic map[string]any
		if err := json.Unmarshal(trimmed, &generic); err != nil {
			return RawOptions{}, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		labels := make(map[string]string, len(generic))
		for k, v := range generic {
			labels[k] = stringify(v)
		}
		return RawOptions{Kind: OptionsLabelMap, Labels: labels}, nil
	default:
		return RawOptions{}, fmt.Errorf("%w: unexpected JSON value", ErrMalformedOptions)
	}
}

// Ordered returns the canonical ordered option list.
func (o RawOptions) Ordered() ([]string, error) {
	switch o.Kind {
	case OptionsList:
		return slices.Clone(o.List), nil
	case OptionsEncodedList:
		list, err := decodeList([]byte(o.Encoded))
		if err != nil {
			return nil, err
		}
		return list, nil
	case OptionsLabelMap:
		keys := make([]string, 0, len(o.Labels))
		for k := range o.Labels {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, naturalCompare)
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = o.Labels[k]
		}
		return out, nil
	default:
		return nil, nil
	}
}

// naturalCompare orders "A" < "B" and "2" < "10".
func naturalCompare(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

func decodeList(data []byte) ([]string, error) {
	var generic []any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
	}
	out := make([]string, len(generic))
	for i, v := range generic {
		out[i] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Question is the normalized, immutable form the session works with.
// CorrectText is the literal option text; Scoreable is false when the answer
// key could not be resolved against Options.
type Question struct {
	ID             int64    `json:"id"`
	PaperID        int64    `json:"paper_id"`
	QuestionNumber int      `json:"question_number"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	CorrectAnswer  string   `json:"correct_answer"`
	CorrectText    string   `json:"correct_text"`
	Scoreable      bool     `json:"scoreable"`
	Explanation    *string  `json:"explanation,omitempty"`
	Subject        *string  `json:"subject,omitempty"`
	Topic          *string  `json:"topic,omitempty"`
	Difficulty     *string  `json:"difficulty,omitempty"`
}

// Normalize converts a stored question into its canonical form. It never
// fails: malformed options degrade to an empty list and an unresolvable
// answer key makes the question unscoreable, each with a logged warning.
func Normalize(q model.Question, log zerolog.Logger) Question {
	nq, problems := normalize(q)
	for _, p := range problems {
		log.Warn().
			Int64("question_id", q.ID).
			Int64("paper_id", q.PaperID).
			Err(p).
			Msg("Malformed question data")
	}
	return nq
}

// NormalizeAll normalizes a paper's questions, preserving order.
func NormalizeAll(qs []model.Question, log zerolog.Logger) []Question {
	out := make([]Question, len(qs))
	for i := range qs {
		out[i] = Normalize(qs[i], log)
	}
	return out
}

// Validate is the strict ingestion check: it reports the first problem
// Normalize would otherwise only log.
func Validate(q model.Question) error {
	_, problems := normalize(q)
	if len(problems) > 0 {
		return problems[0]
	}
	return nil
}

func normalize(q model.Question) (Question, []error) {
	var problems []error

	nq := Question{
		ID:             q.ID,
		PaperID:        q.PaperID,
		QuestionNumber: q.QuestionNumber,
		Text:           q.QuestionText,
		CorrectAnswer:  q.CorrectAnswer,
		Explanation:    q.Explanation,
		Subject:        q.Subject,
		Topic:          q.Topic,
		Difficulty:     q.Difficulty,
	}

	raw, err := DecodeOptions(q.Options)
	if err == nil {
		nq.Options, err = raw.Ordered()
	}
	if err != nil {
		problems = append(problems, err)
		nq.Options = []string{}
	}
	if nq.Options == nil {
		nq.Options = []string{}
	}
	if len(nq.Options) == 0 && err == nil {
		problems = append(problems, fmt.Errorf("%w: no options", ErrMalformedOptions))
	}

	text, ok, rerr := resolveCorrect(q.CorrectAnswer, nq.Options)
	nq.CorrectText = text
	nq.Scoreable = ok && len(nq.Options) > 0
	if rerr != nil && len(nq.Options) > 0 {
		problems = append(problems, rerr)
	}

	return nq, problems
}

// resolveCorrect maps a single letter A-Z onto the option at that index and
// otherwise treats the answer as literal option text.
func resolveCorrect(answer string, options []string) (string, bool, error) {
	if len(answer) == 1 && answer[0] >= 'A' && answer[0] <= 'Z' {
		idx := int(answer[0] - 'A')
		if idx >= len(options) {
			return answer, false, fmt.Errorf("%w: letter %q out of range for %d options", ErrMalformedAnswer, answer, len(options))
		}
		return options[idx], true, nil
	}

	matches := 0
	for _, opt := range options {
		if opt == answer {
			matches++
		}
	}
	switch matches {
	case 1:
		return answer, true, nil
	case 0:
		return answer, false, fmt.Errorf("%w: answer does not match any option", ErrMalformedAnswer)
	default:
		return answer, false, fmt.Errorf("%w: answer matches %d options", ErrMalformedAnswer, matches)
	}
}

const maxDisplayOptionLen = 120

var leakedSolution = regexp.MustCompile(`(?i)first term|explanation|solution|=|\n`)

// DisplayOptions is the browse-view filter that hides option entries which
// look like a leaked explanation. Scoring always uses q.Options.
func DisplayOptions(q Question, log zerolog.Logger) []string {
	out := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if utf8.RuneCountInString(opt) > maxDisplayOptionLen || leakedSolution.MatchString(opt) {
			log.Warn().
				Int64("question_id", q.ID).
				Str("option", opt).
				Msg("Skipping suspicious option (may be explanation/solution)")
			continue
		}
		out = append(out, opt)
	}
	return out
}
