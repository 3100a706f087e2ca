// Command svsim is the out-of-core driver: it walks a directory for .sv
// fixtures, pairs each with a same-stem JSON test-case file, and reports
// pass/fail counts and primitive-gate costs, mirroring test_runner.py's
// summary report. It is a thin shell over the svsim package; all
// simulation semantics live there.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"svsim"
)

func main() {
	dir := flag.String("dir", ".", "directory to search for .sv fixtures")
	workers := flag.Int("workers", 4, "number of files to test in parallel")
	flag.Parse()

	report, err := runDirectory(*dir, *workers)
	if err != nil {
		log.Fatalf("svsim: %v", err)
	}
	report.Print(os.Stdout)
	if report.Failed() {
		os.Exit(1)
	}
}

// fileReport is one .sv file's outcome, mirroring test_runner.py's
// TestReport shape (parse success flag, gate count, test-case results).
type fileReport struct {
	Path         string
	ParseOK      bool
	GateCount    int
	GateCountErr error
	Mismatches   []svsim.Mismatch
	CasesPassed  int
	CasesTotal   int
	Err          error
}

func (r *fileReport) ok() bool {
	return r.Err == nil && len(r.Mismatches) == 0
}

// summary aggregates fileReports across a directory walk.
type summary struct {
	mu      sync.Mutex
	reports []*fileReport
}

func (s *summary) add(r *fileReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

func (s *summary) Failed() bool {
	for _, r := range s.reports {
		if !r.ok() {
			return true
		}
	}
	return false
}

func (s *summary) Print(w *os.File) {
	passedFiles := 0
	for _, r := range s.reports {
		status := "PASS"
		if !r.ok() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-40s %s  gate_count=%d  cases=%d/%d\n",
			r.Path, status, r.GateCount, r.CasesPassed, r.CasesTotal)
		if r.Err != nil {
			fmt.Fprintf(w, "  error: %v\n", r.Err)
		}
		if r.GateCountErr != nil {
			fmt.Fprintf(w, "  gate count unavailable: %v\n", r.GateCountErr)
		}
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  %s[%d]: %s: got %s, want %s\n", m.CaseName, m.StepIndex, m.Signal, m.Actual, m.Expected)
		}
		if r.ok() {
			passedFiles++
		}
	}
	fmt.Fprintf(w, "\n%d/%d files passed\n", passedFiles, len(s.reports))
}

// runDirectory walks dir for *.sv files, testing each against its
// same-stem .json test-case file (if present) in parallel, each worker
// owning its own *svsim.Cache per §5's cache-safety contract.
func runDirectory(dir string, workers int) (*summary, error) {
	files, err := findSvFiles(dir)
	if err != nil {
		return nil, err
	}

	sum := &summary{}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			sum.add(testFile(f))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

func findSvFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "roms" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".sv") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// findJSONTest returns the same-stem .json file for an .sv fixture, or
// "" if none exists.
func findJSONTest(svPath string) string {
	candidate := strings.TrimSuffix(svPath, ".sv") + ".json"
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	dir := filepath.Dir(svPath)
	base := strings.TrimSuffix(filepath.Base(svPath), ".sv")
	candidate = filepath.Join(dir, "tests_"+base+".json")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func testFile(path string) *fileReport {
	r := &fileReport{Path: path}
	cache := svsim.NewCache()
	dir := filepath.Dir(path)
	name := strings.TrimSuffix(filepath.Base(path), ".sv")

	m, err := cache.Resolve(name, dir)
	if err != nil {
		r.Err = err
		return r
	}
	r.ParseOK = true

	cost, err := cache.GateCount(name, dir)
	r.GateCount = cost
	r.GateCountErr = err

	jsonPath := findJSONTest(path)
	if jsonPath == "" {
		return r
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		r.Err = err
		return r
	}

	if m.IsSequential() {
		spec, err := svsim.ParseSequentialTestSpec(data)
		if err != nil {
			r.Err = err
			return r
		}
		mismatches, passed, err := svsim.RunSequentialTests(cache, dir, m, spec)
		if err != nil {
			r.Err = err
			return r
		}
		r.Mismatches = mismatches
		r.CasesPassed = passed
		r.CasesTotal = len(spec.TestCases)
		return r
	}

	cases, err := svsim.ParseCombTestCases(data)
	if err != nil {
		r.Err = err
		return r
	}
	mismatches, passed, err := svsim.RunCombinationalTests(cache, dir, m, cases)
	if err != nil {
		r.Err = err
		return r
	}
	r.Mismatches = mismatches
	r.CasesPassed = passed
	r.CasesTotal = len(cases)
	return r
}
