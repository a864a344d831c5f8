// Package main benchmarks the covloupe CLI against generated projects of
// increasing size.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkConfig holds configuration for the benchmark run
type BenchmarkConfig struct {
	Binary       string
	Timeout      time.Duration
	Runs         int
	ProjectSizes []int
	LinesPerFile int
	Commands     [][]string
}

// BenchmarkResult captures the timing of one command on one project size
type BenchmarkResult struct {
	Files    int
	Command  string
	ColdTime string
	WarmTime string
}

func main() {
	config := BenchmarkConfig{
		Binary:       "covloupe",
		Timeout:      2 * time.Minute,
		Runs:         5,
		ProjectSizes: []int{100, 1000, 10000},
		LinesPerFile: 200,
		Commands: [][]string{
			{"list", "--output", "json"},
			{"totals", "--output", "json"},
			{"list", "--tracked-globs", "lib/**/*.rb", "--raise-on-stale"},
			{"uncovered", "lib/f0.rb", "--source", "uncovered"},
		},
	}

	if _, err := exec.LookPath(config.Binary); err != nil {
		fmt.Printf("Prerequisites check failed: %s binary not found in PATH\n", config.Binary)
		os.Exit(1)
	}

	base, err := os.MkdirTemp("", "covloupe-bench-")
	if err != nil {
		fmt.Printf("Failed to create workspace: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(base) }()

	var results []BenchmarkResult
	for _, size := range config.ProjectSizes {
		dir := filepath.Join(base, fmt.Sprintf("project_%d", size))
		fmt.Printf("Generating project with %d files...\n", size)
		if err := generateProject(dir, size, config.LinesPerFile); err != nil {
			fmt.Printf("Failed to generate project: %v\n", err)
			os.Exit(1)
		}
		for _, args := range config.Commands {
			results = append(results, benchmarkCommand(config, dir, size, args))
		}
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// generateProject writes n Ruby sources and a matching resultset under dir.
// Every third line is uncovered and every seventh is not executable.
func generateProject(dir string, n, lines int) error {
	libDir := filepath.Join(dir, "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		return err
	}

	coverage := make(map[string]any, n)
	src := strings.Repeat("puts 1\n", lines)
	for i := range n {
		path := filepath.Join(libDir, fmt.Sprintf("f%d.rb", i))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			return err
		}
		hits := make([]any, lines)
		for l := range hits {
			switch {
			case l%7 == 0:
				hits[l] = nil
			case l%3 == 0:
				hits[l] = 0
			default:
				hits[l] = l % 5
			}
		}
		coverage[path] = map[string]any{"lines": hits}
	}

	resultset := map[string]any{
		"RSpec": map[string]any{
			"coverage":  coverage,
			"timestamp": time.Now().Add(time.Hour).Unix(),
		},
	}
	data, err := json.Marshal(resultset)
	if err != nil {
		return err
	}
	covDir := filepath.Join(dir, "coverage")
	if err := os.MkdirAll(covDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(covDir, ".resultset.json"), data, 0o644)
}

// benchmarkCommand runs one command config.Runs times and reports the first
// run separately from the average of the rest.
func benchmarkCommand(config BenchmarkConfig, dir string, size int, args []string) BenchmarkResult {
	command := strings.Join(args, " ")
	fmt.Printf("  %d files: %s\n", size, command)

	var times []float64
	for run := 1; run <= config.Runs; run++ {
		start := time.Now()

		cmd := exec.Command(config.Binary, args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "COVLOUPE_COLOR=no")

		done := make(chan error, 1)
		go func() {
			_, err := cmd.CombinedOutput()
			done <- err
		}()

		select {
		case err := <-done:
			if err == nil {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	result := BenchmarkResult{Files: size, Command: command, ColdTime: "FAILED", WarmTime: "N/A"}
	if len(times) > 0 {
		result.ColdTime = fmt.Sprintf("%.3fs", times[0])
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		result.WarmTime = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}
	fmt.Printf("    Cold: %s, Warm average: %s\n", result.ColdTime, result.WarmTime)
	return result
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/covloupe_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"files", "cmd", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{fmt.Sprint(r.Files), r.Command, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, r := range results {
		fmt.Printf("  %6d files  %-50s Cold: %s, Warm: %s\n", r.Files, r.Command, r.ColdTime, r.WarmTime)
	}
}
