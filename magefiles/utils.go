//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// run executes command. Output is streamed when stream is set or mage runs
// verbose; otherwise it is printed only when the command fails.
func run(stream bool, command string, args ...string) (string, error) {
	stream = stream || mg.Verbose()

	var b bytes.Buffer
	var stdout, stderr io.Writer = &b, &b
	if stream {
		stdout = io.MultiWriter(&b, os.Stdout)
		stderr = io.MultiWriter(&b, os.Stderr)
	}

	fmt.Printf("Executing: %s %s\n", command, strings.Join(args, " "))
	if _, err := sh.Exec(nil, stdout, stderr, command, args...); err != nil {
		if !stream {
			fmt.Println("... failed command output:")
			fmt.Println(b.String())
		}
		return "", fmt.Errorf("error executing %s: %w", command, err)
	}
	return b.String(), nil
}
