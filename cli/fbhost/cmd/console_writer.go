package cmd

import "fmt"

// consoleWriter is used to print command results, tests replace it to
// capture the output.
var consoleWriter consoleWrapper = stdoutWrapper{}

type (
	consoleWrapper interface {
		Println(a ...any)
	}

	stdoutWrapper struct{}
)

func (stdoutWrapper) Println(a ...any) {
	fmt.Println(a...)
}
