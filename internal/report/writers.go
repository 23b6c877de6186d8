package report

import (
	"fmt"
	"path/filepath"

	"github.com/ShayCichocki/articlebench/internal/dataset"
	"github.com/ShayCichocki/articlebench/pkg/models"
)

// WriteResultsJSONL writes one scores object per successful row.
func WriteResultsJSONL(path string, results []models.RowResult) error {
	ok := Succeeded(results)
	rows := make([]any, 0, len(ok))
	for _, r := range ok {
		rows = append(rows, r.Scores)
	}
	return dataset.WriteJSONL(path, rows)
}

// WriteRunData writes the run record of every row the orchestrator
// completed, so the data can be scored again later.
func WriteRunData(path string, results []models.RowResult) error {
	records := make([]models.RunRecord, 0, len(results))
	for _, r := range results {
		if r.Record != nil {
			records = append(records, *r.Record)
		}
	}
	return dataset.WriteRecords(path, records)
}

// Files lists the paths WriteAll produces under dir.
type Files struct {
	Data     string
	Results  string
	Markdown string
}

// WriteAll writes the data, results and markdown files into dir.
// Data is skipped when withData is false, as when re-scoring a data file.
func WriteAll(dir string, results []models.RowResult, summary models.Summary, withData bool) (Files, error) {
	files := Files{
		Results:  filepath.Join(dir, ResultsFile),
		Markdown: filepath.Join(dir, ResultsMarkdown),
	}
	if withData {
		files.Data = filepath.Join(dir, DataFile)
		if err := WriteRunData(files.Data, results); err != nil {
			return files, fmt.Errorf("write run data: %w", err)
		}
	}
	if err := WriteResultsJSONL(files.Results, results); err != nil {
		return files, fmt.Errorf("write results: %w", err)
	}
	if err := WriteMarkdown(files.Markdown, results, summary); err != nil {
		return files, fmt.Errorf("write markdown: %w", err)
	}
	return files, nil
}
