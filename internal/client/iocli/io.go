// Package iocli is the terminal the CLI talks to
package iocli

// IO abstracts prompts and output so commands can be driven by tests
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
