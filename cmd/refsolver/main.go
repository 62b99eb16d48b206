// Command refsolver is the reference solver spoken to by sat.Session. It reads
// a DIMACS clause file and answers each "1" on stdin with the next model as
// signed codes terminated by 0, or an empty line once none remain. "0" or the
// end of stdin stops it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/limaJavier/modelbrowser/pkg/sat"
)

func main() {
	enginePtr := flag.String("engine", sat.EngineGophersat, `Enumeration engine. Allowed values are "gophersat", "gini" and "kissat", where "gophersat" is the default`)
	kissatPtr := flag.String("kissat", sat.KissatPath, "Path to the kissat executable used by the kissat engine")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-engine gophersat|gini|kissat] [-kissat path] <clause-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	engine := strings.ToLower(*enginePtr)
	sat.KissatPath = *kissatPtr

	// Validate arguments
	if !slices.Contains(sat.Engines(), engine) {
		log.Fatalf("%v is not a valid engine", engine)
	} else if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	file, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("cannot open clause file: %v", err)
	}
	enumerator, err := sat.NewEnumerator(engine, file)
	file.Close()
	if err != nil {
		log.Fatalf("cannot load clause file: %v", err)
	}

	if err := serve(enumerator, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("an error occurred while serving models: %v", err)
	}
}

func serve(enumerator sat.Enumerator, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	writer := bufio.NewWriter(out)
	exhausted := false

	for scanner.Scan() {
		switch request := strings.TrimSpace(scanner.Text()); request {
		case "":
			// The quit request starts with a newline
			continue
		case "0":
			return nil
		case "1":
			line := ""
			if !exhausted {
				solution, ok, err := enumerator.Next()
				if err != nil {
					return err
				}
				if ok {
					line = sat.FormatSolution(solution)
				} else {
					exhausted = true
				}
			}
			fmt.Fprintln(writer, line)
			if err := writer.Flush(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected request %q", request)
		}
	}

	return scanner.Err()
}
