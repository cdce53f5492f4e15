//go:build !tinygo

package logging

import (
	"io"
	"os"
)

func platformOutput() io.Writer { return os.Stdout }
