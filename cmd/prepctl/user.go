package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minPasswordLen = 8

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account, or create/promote an admin",
		Long: "Prompts for the password without echo when stdin is a terminal and " +
			"reads one line from stdin otherwise. With --admin an existing account " +
			"with the same email is promoted and its password replaced.",
		RunE: runCreateUser,
	}
	f := cmd.Flags()
	f.String("email", "", "Account email (required)")
	f.String("name", "", "Display name (required)")
	f.Bool("admin", false, "Grant the admin role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	admin, _ := cmd.Flags().GetBool("admin")

	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	if name == "" {
		return errors.New("name is required")
	}

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	e, err := connect(ctx, false)
	if err != nil {
		return err
	}
	defer e.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	users := repository.NewUserRepository(e.pool)
	u := &model.User{Email: email, Name: name, PasswordHash: string(hash), Role: model.RoleUser}
	if admin {
		err = users.UpsertAdmin(ctx, u)
	} else {
		err = users.Create(ctx, u)
	}
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return fmt.Errorf("%s is already registered (use --admin to promote)", email)
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	e.log.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("User saved")
	fmt.Fprintf(cmd.OutOrStdout(), "user %d <%s> role=%s\n", u.ID, u.Email, u.Role)
	return nil
}

// readPassword prompts twice on a terminal; piped input is read as one line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return checkPassword(string(first))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(p string) (string, error) {
	if len(p) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return p, nil
}
