package main

import (
	"fmt"
	"io"
	"os"

	"mindboard/domain/board"
	"mindboard/infrastructure/codec"
)

func readEnvelope(path string) (board.Envelope, error) {
	importer, err := codec.ImporterFor(codec.FormatFromPath(path))
	if err != nil {
		return board.Envelope{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return board.Envelope{}, err
	}
	defer f.Close()

	env, err := importer.Parse(f)
	if err != nil {
		return board.Envelope{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := (board.Snapshot{Nodes: env.Nodes, Edges: env.Edges}).Validate(); err != nil {
		return board.Envelope{}, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// writeEnvelope writes env to path, or as JSON to stdout when path is empty
func writeEnvelope(stdout io.Writer, path string, env board.Envelope) error {
	format := "json"
	if path != "" {
		format = codec.FormatFromPath(path)
	}
	exporter, err := codec.ExporterFor(format)
	if err != nil {
		return err
	}
	if path == "" {
		return exporter.Export(env, stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(env, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
