// Command gazetrain trains the eye regressor models against a sqlite corpus.
// Tasks run strictly one at a time; ctrl-c finishes the task in flight and
// skips the rest of the queue.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/irislab/gazetrain/internal/tasks"
	"github.com/unixpickle/rip"
)

func main() {
	var args struct {
		DB     string `arg:"--db" help:"path to the training corpus sqlite file"`
		Out    string `arg:"--out" help:"directory for trained model artifacts"`
		Tasks  string `arg:"--tasks" help:"comma-separated task names (default: all)"`
		Config string `arg:"--config" help:"optional YAML settings file"`
		List   bool   `arg:"--list" help:"list available tasks and exit"`
	}
	p := arg.MustParse(&args)

	if args.List {
		for _, s := range tasks.All() {
			fmt.Printf("%-32s gen %d  %-30s %s\n", s.Name, s.Generation(), s.Output, s.Title)
		}
		return
	}
	if args.DB == "" || args.Out == "" {
		p.Fail("--db and --out are required")
	}

	cfg := tasks.DefaultConfig(args.DB, args.Out)
	if args.Config != "" {
		var err error
		cfg, err = cfg.WithOverrides(args.Config)
		if err != nil {
			fail(err)
		}
	}

	var queue tasks.Queue
	if args.Tasks == "" {
		for _, s := range tasks.All() {
			queue.Add(tasks.NewJob(s, cfg))
		}
	} else {
		for _, name := range strings.Split(args.Tasks, ",") {
			name = strings.TrimSpace(name)
			spec, ok := tasks.Lookup(name)
			if !ok {
				fail(fmt.Errorf("unknown task: %s (use --list)", name))
			}
			queue.Add(tasks.NewJob(spec, cfg))
		}
	}

	log.Printf("running %d task(s)", queue.Len())
	var failures int
	for res := range queue.Start(rip.NewRIP().Chan()) {
		if res.Err != nil {
			failures++
			log.Printf("task %s failed after %v: %v", res.Name, res.Elapsed.Round(time.Second), res.Err)
			continue
		}
		log.Printf("task %s finished in %v", res.Name, res.Elapsed.Round(time.Second))
	}
	if failures > 0 {
		fail(fmt.Errorf("%d task(s) failed", failures))
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
