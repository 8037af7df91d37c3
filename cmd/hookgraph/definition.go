package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/meikuraledutech/hookgraph"
)

// readDefinition reads a definition from path ("-" for stdin). Both a bare
// {nodes, edges} document and a full graph record are accepted.
func readDefinition(path string, stdin io.Reader) (hookgraph.Definition, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return hookgraph.Definition{}, err
	}

	var record struct {
		Definition *hookgraph.Definition `json:"definition"`
	}
	if err := json.Unmarshal(b, &record); err != nil {
		return hookgraph.Definition{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if record.Definition != nil {
		return *record.Definition, nil
	}
	var def hookgraph.Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return hookgraph.Definition{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}
