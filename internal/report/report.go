// Package report writes experiment results to disk in the formats the
// analysis is consumed in: a human-readable summary, a JSON record, and CSV
// tables for the confusion matrix and the per-class aggregates.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/rs/zerolog/log"

	"winepress/internal/storage"
)

// Reporter generates experiment reports.
type Reporter struct {
	run        storage.RunRecord
	classMeans *dataframe.DataFrame
	outputPath string
}

// NewReporter creates a new reporter for one run. classMeans may be nil when
// no aggregation was computed.
func NewReporter(run storage.RunRecord, classMeans *dataframe.DataFrame, outputPath string) *Reporter {
	return &Reporter{
		run:        run,
		classMeans: classMeans,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateJSONReport(); err != nil {
		return err
	}
	if err := r.generateConfusionCSV(); err != nil {
		return err
	}
	if err := r.generateClassMeansCSV(); err != nil {
		return err
	}

	log.Info().Str("path", r.outputPath).Msg("reports written")
	return nil
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "EXPERIMENT SUMMARY\n")
	fmt.Fprintf(file, "==================\n\n")

	fmt.Fprintf(file, "Started: %s\n", r.run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration: %s\n", r.run.Duration)
	fmt.Fprintf(file, "Dataset: %s (%d rows, %d duplicates removed)\n\n",
		r.run.DatasetPath, r.run.Rows, r.run.RemovedRows)

	fmt.Fprintf(file, "MODEL SELECTION\n")
	fmt.Fprintf(file, "---------------\n")
	fmt.Fprintf(file, "Best parameters: %s\n", r.run.BestParams)
	for _, res := range r.run.CVResults {
		fmt.Fprintf(file, "  %-28s mean accuracy %.4f (folds: %v)\n",
			res.Params, res.Mean, res.Scores)
	}
	fmt.Fprintf(file, "\nHELD-OUT EVALUATION\n")
	fmt.Fprintf(file, "-------------------\n")
	fmt.Fprintf(file, "Test accuracy: %.4f\n", r.run.TestAccuracy)

	if r.run.Evaluation != nil {
		classes := make([]string, 0, len(r.run.Evaluation.PerClass))
		for c := range r.run.Evaluation.PerClass {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, c := range classes {
			m := r.run.Evaluation.PerClass[c]
			fmt.Fprintf(file, "  %-16s precision %.4f  recall %.4f  f1 %.4f\n",
				c, m.Precision, m.Recall, m.F1)
		}
	}
	return nil
}

// generateJSONReport writes the full run record as JSON.
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "results.json")
	file, err := os.Create(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON report: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.run); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// generateConfusionCSV writes the confusion matrix as a CSV table with
// reference classes as rows and predicted classes as columns.
func (r *Reporter) generateConfusionCSV() error {
	if r.run.Evaluation == nil || len(r.run.Evaluation.Confusion) == 0 {
		return nil
	}

	csvPath := filepath.Join(r.outputPath, "confusion_matrix.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create confusion matrix CSV: %w", err)
	}
	defer file.Close()

	cm := r.run.Evaluation.Confusion
	classes := make([]string, 0, len(cm))
	for c := range cm {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"reference"}, classes...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, ref := range classes {
		row := []string{ref}
		for _, pred := range classes {
			row = append(row, strconv.Itoa(cm[ref][pred]))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// generateClassMeansCSV writes the per-class aggregation table.
func (r *Reporter) generateClassMeansCSV() error {
	if r.classMeans == nil {
		return nil
	}

	csvPath := filepath.Join(r.outputPath, "class_means.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create class means CSV: %w", err)
	}
	defer file.Close()

	if err := r.classMeans.WriteCSV(file); err != nil {
		return fmt.Errorf("failed to write class means CSV: %w", err)
	}
	return nil
}
