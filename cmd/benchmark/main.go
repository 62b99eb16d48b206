package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/limaJavier/modelbrowser/pkg/document"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/limaJavier/modelbrowser/pkg/translation"
	"github.com/samber/lo"
)

const (
	translatorPath         = "touistc"
	refsolverPath          = "../../bin/refsolver"
	testDirectory          = "../../test/sources/"
	modelLimit             = 1000
	KB                     = 1024
)

type ResultType int

const (
	exhausted ResultType = iota
	limitReached
	unsatisfiable
	sourceError
)

var resultTypes = map[ResultType]string{
	exhausted:     "exhausted",
	limitReached:  "limit_reached",
	unsatisfiable: "unsatisfiable",
	sourceError:   "source_error",
}

type TestMetadata struct {
	Name      string
	Formulas  int
	Literals  int
	Variables uint64
	Clauses   int
}

type BenchmarkResult struct {
	Engine              string
	Test                TestMetadata
	TranslationDuration int64
	Duration            int64
	Memory              float32
	CpuPercentage       int64
	Models              int
	Result              ResultType
}

func main() {
	service := translation.NewService(translatorPath)
	testFiles, err := os.ReadDir(testDirectory)
	if err != nil {
		log.Fatalf("cannot read directory: %v", err)
	}
	engines := lo.Filter(sat.Engines(), func(engine string, _ int) bool {
		if engine != sat.EngineKissat {
			return true
		}
		_, err := exec.LookPath(sat.KissatPath)
		return err == nil
	})
	results := make([]BenchmarkResult, 0, len(testFiles)*len(engines))

	for _, file := range testFiles {
		filename := testDirectory + file.Name()
		test, translated, translationDuration := translate(service, filename)
		if !translated.Success {
			fmt.Printf("Skipping test \"%v\": %v\n", filename, translated.Status)
			results = append(results, BenchmarkResult{Test: test, TranslationDuration: translationDuration, Result: sourceError})
			continue
		}

		for _, engine := range engines {
			fmt.Printf("Benchmarking test \"%v\" with engine \"%v\"\n", test.Name, engine)

			duration, maxMemory, cpuPercentage, models, result := measure(engine, translated)

			results = append(results, BenchmarkResult{
				Engine:              engine,
				Test:                test,
				TranslationDuration: translationDuration,
				Duration:            duration,
				Memory:              maxMemory,
				CpuPercentage:       cpuPercentage,
				Models:              models,
				Result:              result,
			})
		}
		translated.Cleanup()
	}

	file, err := os.Create("benchmark_results.csv")
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()
	toCsv(file, results)
}

func translate(service *translation.Service, filename string) (TestMetadata, *translation.Result, int64) {
	formulas, err := os.Open(filename)
	if err != nil {
		log.Fatalf("cannot open source file: %v", err)
	}
	blocks, err := document.Parse(formulas)
	formulas.Close()
	if err != nil {
		log.Fatalf("cannot parse source file: %v", err)
	}
	test := TestMetadata{Name: filename, Formulas: len(blocks)}

	start := time.Now()
	result, err := service.Translate(context.Background(), filename)
	if err != nil {
		log.Fatalf("an error occurred during the translation of \"%v\": %v", filename, err)
	}
	translationDuration := time.Since(start).Milliseconds()
	if !result.Success {
		return test, result, translationDuration
	}

	instance, err := sat.ParseDIMACSFile(result.ClauseFilePath())
	if err != nil {
		log.Fatalf("cannot parse clause file of \"%v\": %v", filename, err)
	}
	test.Literals = result.LiteralTable().Len()
	test.Variables = instance.Variables
	test.Clauses = len(instance.Clauses)
	return test, result, translationDuration
}

// measure enumerates up to modelLimit models with refsolver running under
// /usr/bin/time, whose report lands on the session's stderr once it exits.
func measure(engine string, translated *translation.Result) (duration int64, maxMemory float32, cpuPercentage int64, models int, result ResultType) {
	session, err := sat.Open("/usr/bin/time", translated.ClauseFilePath(),
		sat.WithArgs("-v", refsolverPath, "-engine", engine),
		sat.WithTable(translated.LiteralTable()),
		sat.WithRoundTimeout(0),
	)
	if err != nil {
		log.Fatalf("cannot start refsolver: %v", err)
	}

	result = limitReached
	for models < modelLimit {
		_, ok, err := session.Next(context.Background())
		if err != nil {
			log.Fatalf("an error occurred during the enumeration of \"%v\" using engine \"%v\": %v: %v", translated.ClauseFilePath(), engine, err, session.Stderr())
		} else if !ok {
			result = lo.Ternary(models == 0, unsatisfiable, exhausted)
			break
		}
		models++
	}
	if err := session.Close(); err != nil {
		log.Fatalf("cannot stop refsolver: %v", err)
	}

	splits := strings.Split(session.Stderr(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	duration = parseDurationLine(getLine("wall clock"))
	maxMemory = parseMemoryLine(getLine("maximum resident set size"))
	cpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))

	return duration, maxMemory, cpuPercentage, models, result
}

func toCsv(w io.Writer, results []BenchmarkResult) {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"Engine", "Test", "Formulas", "Literals", "Variables", "Clauses", "Translation(ms)", "Duration(ms)", "Memory(MB)", "CPU(%)", "Models", "Result"}
	if err := writer.Write(header); err != nil {
		log.Panicf("cannot write CSV header: %v", err)
	}

	for _, result := range results {
		record := []string{
			result.Engine,
			result.Test.Name,
			fmt.Sprintf("%d", result.Test.Formulas),
			fmt.Sprintf("%d", result.Test.Literals),
			fmt.Sprintf("%d", result.Test.Variables),
			fmt.Sprintf("%d", result.Test.Clauses),
			fmt.Sprintf("%d", result.TranslationDuration),
			fmt.Sprintf("%d", result.Duration),
			fmt.Sprintf("%.1f", result.Memory),
			fmt.Sprintf("%d", result.CpuPercentage),
			fmt.Sprintf("%d", result.Models),
			resultTypes[result.Result],
		}
		if err := writer.Write(record); err != nil {
			log.Panicf("cannot write CSV record: %v", err)
		}
	}
}

func parseDurationLine(line string) int64 {
	durationStr := strings.Split(line, "(h:mm:ss or m:ss):")[1][1:]
	return parseDuration(durationStr)
}

func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	secondsStr := parts[len(parts)-1]
	secondsParts := strings.Split(secondsStr, ".")

	var duration int64
	if len(parts) == 3 { // h:mm:ss
		hours := lo.Must(strconv.Atoi(parts[0]))
		minutes := lo.Must(strconv.Atoi(parts[1]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(hours*3600+minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else if len(parts) == 2 { // m:ss
		minutes := lo.Must(strconv.Atoi(parts[0]))
		seconds := lo.Must(strconv.Atoi(secondsParts[0]))
		hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
		duration = int64(minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
	} else {
		log.Fatalf("unexpected duration format: %v", durationStr)
	}
	return duration
}

func parseMemoryLine(line string) float32 {
	memoryStr := strings.TrimSpace(strings.Split(line, ":")[1])
	return float32(lo.Must(strconv.ParseFloat(memoryStr, 32))) / KB
}

func parseCpuPercentageLine(line string) int64 {
	percentageStr := strings.TrimSpace(strings.Split(line, ":")[1])
	percentageStr = strings.TrimSuffix(percentageStr, "%")
	return int64(lo.Must(strconv.Atoi(percentageStr)))
}
