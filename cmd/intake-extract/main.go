package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/neurotrace/intake/pkg/common/config"
	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/intake"
	"github.com/neurotrace/intake/pkg/schema"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run keeps stdout for the result alone; logs go to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("intake-extract", flag.ContinueOnError)
	flags.SetOutput(stderr)
	file := flags.String("file", "", "path to a CSV, XLSX or PDF file")
	mediaType := flags.String("type", "", "declared media type, defaults to detection by extension")
	form := flags.Bool("form", false, "print the comma-separated submission string instead of the envelope")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		flags.Usage()
		return 2
	}

	logger.Init()
	logger.Log.SetOutput(stderr)
	cfg := config.Load()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Log.WithError(err).Error("failed to read file")
		return 1
	}

	pipeline, err := intake.NewPipeline(cfg)
	if err != nil {
		logger.Log.WithError(err).Error("failed to build extraction pipeline")
		return 1
	}

	res := pipeline.Orchestrator.Extract(context.Background(), extraction.Upload{
		ID:        uuid.New().String(),
		Name:      filepath.Base(*file),
		MediaType: *mediaType,
		Data:      data,
	})

	if *form {
		line, err := schema.FormString(res.Features)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, line)
		return 0
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Log.WithError(err).Error("failed to encode result")
		return 1
	}
	if res.Failed() {
		return 1
	}
	return 0
}
