package engine

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestReviewOutcomes(t *testing.T) {
	qs := testQuestions(4)
	c, err := StartReview(7, qs, map[int64]string{1: "a", 2: "b", 3: "a", 50: "a"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if c.Session().Mode != ModeReview || c.Session().IsTimerRunning {
		t.Fatalf("session = %+v", c.Session())
	}

	r, err := c.Review()
	if err != nil {
		t.Fatal(err)
	}
	if r.Correct != 2 || r.Incorrect != 1 || r.Unanswered != 1 || r.Total != 4 {
		t.Fatalf("review = %+v", r)
	}
	if r.Score != 50 || r.Accuracy != 67 {
		t.Fatalf("score = %d accuracy = %d", r.Score, r.Accuracy)
	}
	want := []Outcome{OutcomeCorrect, OutcomeIncorrect, OutcomeCorrect, OutcomeUnanswered}
	for i, item := range r.Items {
		if item.Outcome != want[i] {
			t.Errorf("item %d = %s, want %s", i, item.Outcome, want[i])
		}
	}
}

func TestReviewIsReadOnly(t *testing.T) {
	c, err := StartReview(7, testQuestions(2), map[int64]string{1: "a"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SelectAnswer(2, "a"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("select: err = %v", err)
	}
	if _, err := c.ToggleMarkForReview(1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("mark: err = %v", err)
	}
	c.NextQuestion()
	if c.Session().CurrentIndex != 1 {
		t.Fatal("navigation should still work in review")
	}
}

func TestReviewEmpty(t *testing.T) {
	c, err := StartReview(7, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Review(); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("err = %v", err)
	}
}
