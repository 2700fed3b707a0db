package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSampleSeedIsValid(t *testing.T) {
	f, err := openSeed("")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Exams) == 0 {
		t.Fatal("sample has no exams")
	}
	if problems := checkSeed(f); len(problems) > 0 {
		t.Fatalf("sample problems: %v", problems)
	}
}

func TestValidatePaper(t *testing.T) {
	good := writeFile(t, `{"questions":[
		{"question_number":1,"question_text":"2+2","options":["3","4"],"correct_answer":"B"},
		{"question_number":2,"question_text":"3+3","options":{"A":"6","B":"7"},"correct_answer":"6"}
	]}`)
	badAnswer := writeFile(t, `{"questions":[
		{"question_number":1,"question_text":"2+2","options":["3","4"],"correct_answer":"E"}
	]}`)
	duplicate := writeFile(t, `{"questions":[
		{"question_number":1,"question_text":"a","options":["x","y"],"correct_answer":"A"},
		{"question_number":1,"question_text":"b","options":["x","y"],"correct_answer":"A"}
	]}`)
	empty := writeFile(t, `{}`)
	unknown := writeFile(t, `{"qs":[]}`)

	tests := []struct {
		name    string
		path    string
		wantErr bool
		want    string
	}{
		{"valid upload", good, false, "ok"},
		{"letter out of range", badAnswer, true, "question 1"},
		{"duplicate number", duplicate, true, "question 2"},
		{"empty file", empty, true, "no exams or questions"},
		{"unknown field", unknown, true, "decode seed"},
		{"missing file", filepath.Join(t.TempDir(), "nope.json"), true, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "validate-paper", tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, want error %v (output %q)", err, tt.wantErr, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Fatalf("output %q does not mention %q", out, tt.want)
			}
		})
	}
}

func TestValidatePaperRequiresFile(t *testing.T) {
	if _, err := runCLI(t, "validate-paper"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestReadPasswordFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	p, err := readPassword(strings.NewReader("s3cret-pass\n"), &prompt)
	if err != nil || p != "s3cret-pass" {
		t.Fatalf("readPassword = %q, %v", p, err)
	}
	if _, err := readPassword(strings.NewReader("short"), &prompt); err == nil {
		t.Fatal("short password accepted")
	}
}
