package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if err := loadDotEnv(nil, false); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}
	os.Exit(run(context.Background(), defaultEnv(), os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, e env, args []string) int {
	root := newRootCmd(e)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadDotEnv reads files (default ".env") into the environment. With
// overload set, values in the files replace variables already set. A
// missing file is not an error.
func loadDotEnv(files []string, overload bool) error {
	load := godotenv.Load
	if overload {
		load = godotenv.Overload
	}
	if err := load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
