package report

import (
	"dbeval/metrics"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const title = "Document store vs relational store comparison"

var objectives = []string{
	"Schema flexibility: storing and querying records of evolving structure",
	"Performance: create, read, update and delete throughput over growing datasets",
	"Data integrity: validation, transactions, referential integrity and the cost of consistency",
}

type ExperimentInfo struct {
	Title      string   `json:"title" yaml:"title"`
	Date       string   `json:"date" yaml:"date"`
	Objectives []string `json:"objectives" yaml:"objectives"`
}

// Document is the content of the result-summary file.
type Document struct {
	ExperimentInfo ExperimentInfo             `json:"experiment_info" yaml:"experiment_info"`
	Results        map[string]*metrics.Result `json:"results" yaml:"results"`
	Summary        metrics.Summary            `json:"summary" yaml:"summary"`
}

func NewDocument(results []*metrics.Result, summary metrics.Summary, date time.Time) Document {
	doc := Document{
		ExperimentInfo: ExperimentInfo{
			Title:      title,
			Date:       date.UTC().Format(time.RFC3339),
			Objectives: objectives,
		},
		Results: map[string]*metrics.Result{},
		Summary: summary,
	}
	for _, r := range results {
		doc.Results[r.Backend] = r
	}
	return doc
}

// Ordered returns the results sorted by backend name.
func (d Document) Ordered() []*metrics.Result {
	names := make([]string, 0, len(d.Results))
	for name := range d.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*metrics.Result, 0, len(names))
	for _, name := range names {
		out = append(out, d.Results[name])
	}
	return out
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// WriteFile overwrites path with the document, as YAML when the path ends in
// .yaml or .yml and as JSON otherwise.
func WriteFile(path string, doc Document) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "encoding results")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}

func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.Wrapf(err, "reading %s", path)
	}
	doc := Document{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	return doc, errors.Wrapf(err, "decoding %s", path)
}
