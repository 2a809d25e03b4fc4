// Weft CLI - loads knowledge bases and evaluates queries against them.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/weft/config"
	"github.com/chazu/weft/sexpr"
	"github.com/chazu/weft/space"
	"github.com/chazu/weft/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (overrides weft.toml)")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	eval := flag.String("e", "", "Evaluate a single expression and exit")
	budget := flag.Uint64("budget", 0, "Step budget per evaluation (overrides weft.toml)")
	maxSolutions := flag.Int("n", 0, "Stop after N solutions per query (0 = all)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: weft [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the given files into the space, then evaluates queries.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  weft -i                          # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  weft kb.weft -e '(double 21)'    # Load kb.weft, evaluate one query\n")
		fmt.Fprintf(os.Stderr, "  weft kb.weft -e '(coin)' -n 1    # First solution only\n")
		fmt.Fprintf(os.Stderr, "\nIn the REPL, lines starting with ! are evaluated; other lines\n")
		fmt.Fprintf(os.Stderr, "are asserted into the space.\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *budget > 0 {
		cfg.Engine.StepBudget = *budget
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)

	sp := space.New()
	for _, path := range flag.Args() {
		if err := loadFile(sp, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	opts := []vm.Option{vm.WithStepBudget(cfg.Engine.StepBudget)}
	if cfg.Engine.TimeoutMS > 0 {
		opts = append(opts, vm.WithTimeout(time.Duration(cfg.Engine.TimeoutMS)*time.Millisecond))
	}
	if cfg.Engine.MaxDepth > 0 {
		opts = append(opts, vm.WithMaxDepth(cfg.Engine.MaxDepth))
	}
	eng := vm.NewEngine(sp, opts...)

	if *eval != "" {
		if err := evaluate(eng, *eval, *maxSolutions); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive || flag.NArg() == 0 {
		repl(eng, *maxSolutions)
	}
}

// loadFile parses a file and bulk-asserts its contents.
func loadFile(sp *space.Space, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	items, err := sexpr.ParseAll(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := sp.AssertBulk(items); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// evaluate runs one query and prints each solution on its own line.
func evaluate(eng *vm.Engine, src string, limit int) error {
	query, err := sexpr.Parse(src)
	if err != nil {
		return err
	}
	cur, err := eng.Evaluate(query)
	if err != nil {
		return err
	}
	for n := 0; limit == 0 || n < limit; n++ {
		v, err := cur.Next()
		if errors.Is(err, vm.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(sexpr.Print(v))
	}
	return nil
}

func repl(eng *vm.Engine, limit int) {
	fmt.Println("weft repl - !<expr> evaluates, <expr> asserts, ctrl-d exits")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if rest, isQuery := strings.CutPrefix(line, "!"); isQuery {
			if err := evaluate(eng, rest, limit); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			continue
		}

		v, err := sexpr.Parse(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := eng.Space().Assert(v); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("ok (%d entries)\n", eng.Space().Len())
	}
}
