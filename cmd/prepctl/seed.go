package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
	"github.com/stemsi/exprep-backend/internal/service"
)

//go:embed sample_seed.json
var sampleSeed []byte

// seedFile is the catalog import format: exams, their papers and questions.
// A bare {"questions": [...]} upload body is accepted by validate-paper too.
type seedFile struct {
	Exams     []seedExam                 `json:"exams"`
	Questions []model.AddQuestionRequest `json:"questions"`
}

type seedExam struct {
	model.CreateExamRequest
	Papers []seedPaper `json:"papers"`
}

type seedPaper struct {
	model.CreatePaperRequest
	Questions []model.AddQuestionRequest `json:"questions"`
}

func readSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

func openSeed(path string) (*seedFile, error) {
	if path == "" {
		return readSeed(bytes.NewReader(sampleSeed))
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return readSeed(fh)
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load exams, papers and questions into the catalog",
		Long: "Loads a catalog file (the built-in sample when --file is omitted). " +
			"Every paper is validated before anything is written. Exams or papers " +
			"that already exist are skipped.",
		RunE: runSeed,
	}
	cmd.Flags().StringP("file", "f", "", "Catalog JSON file (default: built-in sample)")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	f, err := openSeed(path)
	if err != nil {
		return err
	}
	if problems := checkSeed(f); len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), p)
		}
		return fmt.Errorf("%d invalid paper(s), nothing written", len(problems))
	}

	ctx := cmd.Context()
	e, err := connect(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	exams := service.NewExamService(
		repository.NewExamRepository(e.pool),
		repository.NewQuestionRepository(e.pool),
		repository.NewPurchaseRepository(e.pool),
		e.rdb, e.cfg.PaperCacheTTL, e.log,
	)

	out := cmd.OutOrStdout()
	for _, se := range f.Exams {
		exam, err := exams.CreateExam(ctx, &se.CreateExamRequest)
		if errors.Is(err, repository.ErrDuplicateExam) {
			fmt.Fprintf(out, "skip exam %q: already exists\n", se.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create exam %q: %w", se.Name, err)
		}

		for _, sp := range se.Papers {
			paper, err := exams.CreatePaper(ctx, exam.ID, &sp.CreatePaperRequest)
			if errors.Is(err, repository.ErrDuplicatePaper) {
				fmt.Fprintf(out, "skip paper %q: already exists\n", sp.Title)
				continue
			}
			if err != nil {
				return fmt.Errorf("create paper %q: %w", sp.Title, err)
			}
			n, err := exams.ReplaceQuestions(ctx, paper.ID, &model.ReplaceQuestionsRequest{Questions: sp.Questions})
			if err != nil {
				return fmt.Errorf("load questions for %q: %w", sp.Title, err)
			}
			fmt.Fprintf(out, "%s / %s: %d questions (paper %d)\n", exam.Name, paper.Title, n, paper.ID)
		}
	}
	return nil
}

// checkSeed runs the strict upload validation over every paper.
func checkSeed(f *seedFile) []error {
	var problems []error
	if len(f.Questions) > 0 {
		if _, err := service.ValidateUpload(0, f.Questions); err != nil {
			problems = append(problems, fmt.Errorf("questions: %w", err))
		}
	}
	for _, se := range f.Exams {
		if se.Name == "" {
			problems = append(problems, errors.New("exam without a name"))
			continue
		}
		for _, sp := range se.Papers {
			if len(sp.Questions) == 0 {
				problems = append(problems, fmt.Errorf("%s / %s: no questions", se.Name, sp.Title))
				continue
			}
			if _, err := service.ValidateUpload(0, sp.Questions); err != nil {
				problems = append(problems, fmt.Errorf("%s / %s: %w", se.Name, sp.Title, err))
			}
		}
	}
	return problems
}
