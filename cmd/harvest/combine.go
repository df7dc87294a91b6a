package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fwojciec/harvest/fs"
)

// combineBufferSize matches the large sequential writes of a corpus file.
const combineBufferSize = 8 << 20

// Run executes the combine command.
func (c *CombineCmd) Run(deps *Dependencies) (err error) {
	f, err := os.Create(c.Output)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriterSize(f, combineBufferSize)
	n, err := fs.Combine(deps.Ctx, c.Dir, w,
		fs.WithMaxDocumentBytes(c.MaxBytes),
		fs.WithBatchSize(c.BatchSize),
		fs.WithCombineWorkers(c.Workers),
	)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Combined %d documents into %s\n", n, c.Output)
	return nil
}
