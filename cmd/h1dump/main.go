// Command h1dump prints every HTTP/1.x message of a recorded stream as a JSON line.
//
//	h1dump [-response] [-chunk N] [file]
//
// The stream is read from stdin if no file is given.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/indigo-web/h1/config"
	"github.com/indigo-web/h1/internal/tokenizer"
)

func main() {
	response := flag.Bool("response", false, "parse responses instead of requests")
	chunk := flag.Int("chunk", 4096, "feed the parser by pieces of this size")
	flag.Parse()

	if err := run(flag.Arg(0), *response, *chunk); err != nil {
		fmt.Fprintln(os.Stderr, "h1dump:", err)
		os.Exit(1)
	}
}

func run(path string, response bool, chunk int) error {
	if chunk <= 0 {
		return errors.New("chunk size must be positive")
	}

	cfg, err := config.FromEnv("H1_")
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(path) > 0 {
		file, err := os.Open(path)
		if err != nil {
			return err
		}

		defer file.Close()
		in = file
	}

	typ := tokenizer.Request
	if response {
		typ = tokenizer.Response
	}

	return dump(in, os.Stdout, typ, chunk, cfg.Headers.MaxPairs)
}
