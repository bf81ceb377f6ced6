// Package cli asks the operator for startup settings that were not supplied
// by flags, environment or config file.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/doridoridoriand/pinglog/internal/config"
)

// ErrNoAnswer is returned when input ends before a required answer.
var ErrNoAnswer = errors.New("no answer given")

// Prompter reads answers line by line from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a prompter over in and out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask writes question and returns the trimmed answer. Required questions are
// repeated until a non-blank answer arrives or input ends.
func (p *Prompter) Ask(question string, required bool) (string, error) {
	for {
		fmt.Fprint(p.out, question)
		line, err := p.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer != "" || !required {
			if err != nil && err != io.EOF {
				return "", err
			}
			return answer, nil
		}
		if err != nil {
			if err == io.EOF {
				return "", errors.Wrap(ErrNoAnswer, strings.TrimSpace(question))
			}
			return "", err
		}
	}
}

// Fill asks for the target and log file when they are missing. With all set
// it also asks for the threshold and the session comment.
func (p *Prompter) Fill(cfg *config.Config, all bool) error {
	if cfg.Monitor.Target == "" {
		target, err := p.Ask("Enter the IP address or hostname to ping: ", true)
		if err != nil {
			return err
		}
		cfg.Monitor.Target = target
	}
	if cfg.Monitor.LogFile == "" {
		logFile, err := p.Ask("Enter the path of the log file: ", true)
		if err != nil {
			return err
		}
		cfg.Monitor.LogFile = logFile
	}
	if !all {
		return nil
	}

	threshold, err := p.Ask(fmt.Sprintf("Enter the high ping threshold in ms (default %d): ", config.DefaultThresholdMs), false)
	if err != nil {
		return err
	}
	if threshold != "" {
		if err := cfg.SetThreshold(threshold); err != nil {
			fmt.Fprintf(p.out, "Invalid threshold, using default of %d ms.\n", config.DefaultThresholdMs)
			cfg.DismissThresholdWarning()
		}
	}

	comment, err := p.Ask("Enter a comment for this session (optional): ", false)
	if err != nil {
		return err
	}
	if comment != "" {
		cfg.Monitor.Comment = comment
	}
	return nil
}
