package ui

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user leaves fzf without picking.
var ErrCancelled = errors.New("selection cancelled")

const (
	// maxRows caps the list height; fzf scrolls beyond it.
	maxRows = 15
	// chromeRows covers the prompt, info and header lines around the list.
	chromeRows = 3
)

// Picker asks the user to choose one line with fzf. Lines go in on stdin as
// "<index>\t<line>" and only the line is shown, so duplicates still map back
// to their position. Nothing passes through a shell.
type Picker struct {
	Prompt string
	Header string
}

// Pick returns the index of the chosen line.
func (p Picker) Pick(lines []string) (int, error) {
	if len(lines) == 0 {
		return -1, fmt.Errorf("nothing to choose from")
	}
	fzf, err := exec.LookPath("fzf")
	if err != nil {
		return -1, fmt.Errorf("fzf not found in PATH: %w", err)
	}

	var in strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&in, "%d\t%s\n", i, line)
	}
	cmd := exec.Command(fzf, p.args(len(lines))...)
	cmd.Stdin = strings.NewReader(in.String())
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && (exitErr.ExitCode() == 1 || exitErr.ExitCode() == 130) {
			return -1, ErrCancelled
		}
		return -1, fmt.Errorf("fzf failed: %w", err)
	}
	return parseSelection(string(out), len(lines))
}

func (p Picker) args(n int) []string {
	args := []string{
		"--prompt", p.Prompt + " > ",
		"--height", strconv.Itoa(min(n, maxRows) + chromeRows),
		"--reverse",
		"--with-nth", "2..",
		"--delimiter", "\t",
		"--no-multi",
	}
	if p.Header != "" {
		args = append(args, "--header", p.Header)
	}
	return args
}

// parseSelection maps fzf's "<index>\t<line>" output back to the index.
func parseSelection(out string, n int) (int, error) {
	field, _, _ := strings.Cut(strings.TrimSpace(out), "\t")
	if field == "" {
		return -1, ErrCancelled
	}
	idx, err := strconv.Atoi(field)
	if err != nil {
		return -1, fmt.Errorf("parsing selection index: %w", err)
	}
	if idx < 0 || idx >= n {
		return -1, fmt.Errorf("selection index %d out of range", idx)
	}
	return idx, nil
}

// Confirm asks a yes/no question. Cancelling counts as no.
func Confirm(question string) (bool, error) {
	idx, err := Picker{Prompt: question}.Pick([]string{"No", "Yes"})
	if errors.Is(err, ErrCancelled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return idx == 1, nil
}
