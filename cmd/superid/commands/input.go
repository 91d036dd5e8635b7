package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readTerminalPassword is swapped out in tests.
var readTerminalPassword = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

var errEmptyInput = errors.New("input required")

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal, or a plain line otherwise so scripts can pipe the password in.
func readPassword(cmd *cobra.Command, prompt string) ([]byte, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := readTerminalPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		if len(pw) == 0 {
			return nil, errEmptyInput
		}
		return pw, nil
	}

	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// readText prompts for a visible value.
func readText(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", prompt)
	return readLine(cmd.InOrStdin())
}

// stdinReaders keeps one buffered reader per input so consecutive prompts do
// not lose bytes the previous read buffered.
var stdinReaders = map[io.Reader]*bufio.Reader{}

func readLine(r io.Reader) (string, error) {
	br, ok := stdinReaders[r]
	if !ok {
		br = bufio.NewReader(r)
		stdinReaders[r] = br
	}

	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errEmptyInput
		}
		return "", err
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errEmptyInput
	}
	return line, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
