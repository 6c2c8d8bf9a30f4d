package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio reads from a file (normally os.Stdin) and writes to out
type Stdio struct {
	out    io.Writer
	inFile *os.File
	in     *bufio.Reader
}

// NewStdio returns the process terminal
func NewStdio() IO {
	return NewFileIO(os.Stdin, os.Stdout)
}

// NewFileIO reads prompts from in and writes to out
func NewFileIO(in *os.File, out io.Writer) *Stdio {
	return &Stdio{
		out:    out,
		inFile: in,
		in:     bufio.NewReader(in),
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword hides input on a terminal, piped input is read as a plain line
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	fd := int(s.inFile.Fd())
	if !term.IsTerminal(fd) {
		return s.ReadInput(prompt)
	}

	s.Printf("%s", prompt)
	pwBytes, err := term.ReadPassword(fd)
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}
