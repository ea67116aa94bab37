// Command oapisync keeps Go handlers, route registrations and models in sync
// with an OpenAPI or Swagger document.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/oapisync/internal/cli"
	"github.com/mark3labs/oapisync/internal/generator"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, cli.ErrUsage):
			os.Exit(2)
		case errors.Is(err, generator.ErrOutOfDate):
			os.Exit(3)
		}
		os.Exit(1)
	}
}
