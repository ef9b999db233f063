// Command anyflowd is a small sample host for the anyflow engine: it loads
// a graph from a YAML description, runs it for the requested target slots,
// and exposes a run counter and a run-latency histogram on a Prometheus
// endpoint. It plays the role
// purpleidea/mgmt's cmd/mgmt/main.go plays for a resource graph, adapted
// from codegangsta/cli's Command/Flag style to go-arg's struct-tag flags
// and trimmed down to what a dataflow graph host actually needs: no etcd
// watch loop, no convergent Start/Pause/Continue lifecycle, since a
// request-scoped computation graph runs to completion and exits instead of
// converging indefinitely.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/baidu/anyflow/engine"
	"github.com/baidu/anyflow/engine/graph"
	"github.com/baidu/anyflow/ops"
	"github.com/baidu/anyflow/util/errwrap"
	"github.com/baidu/anyflow/yamlgraph"
)

var (
	version = "dev"
	program = "anyflowd"
)

type args struct {
	File     string   `arg:"--file,required" help:"graph definition to load (YAML)"`
	Target   []string `arg:"--target,required" help:"data slot(s) to request, vertex.emit form"`
	Listen   string   `arg:"--listen" help:"address to serve /metrics on; empty disables it"`
	PoolSize int      `arg:"--pool-size" help:"non-trivial vertex concurrency; 0 uses the inline executor"`
	Once     bool     `arg:"--once" help:"run exactly once and exit instead of waiting for a signal"`
}

// init registers the builtin operator kinds with yamlgraph, so a loaded
// graph can name them by kind.
func init() {
	yamlgraph.Register("alias", func() engine.Processor { return &ops.Alias{} })
	yamlgraph.Register("const", func() engine.Processor { return &ops.Const{} })
	yamlgraph.Register("select", func() engine.Processor { return &ops.Select{} })
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", program, version)
}

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anyflow_runs_total",
		Help: "Total number of Graph.Run invocations, by outcome.",
	}, []string{"graph", "code"})

	runLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anyflow_run_latency_seconds",
		Help:    "Wall-clock time from Graph.Run to its Closure flushing.",
		Buckets: prometheus.DefBuckets,
	}, []string{"graph"})
)

// loaded bundles the pieces a (re)load produces: the parsed config (for its
// name and logf), the built graph, and the resolved target slots.
type loaded struct {
	cfg     *yamlgraph.GraphConfig
	g       *graph.Graph
	targets []*graph.Data
}

func loadGraph(a args) (*loaded, error) {
	cfg, err := yamlgraph.Load(a.File)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	cfg.SetLogf(func(format string, args ...interface{}) { log.Printf(format, args...) })

	g, err := cfg.Build()
	if err != nil {
		for _, cause := range errwrap.Causes(err) {
			log.Printf("build: %v", cause)
		}
		return nil, fmt.Errorf("build failed with %d error(s)", len(errwrap.Causes(err)))
	}

	if a.PoolSize > 0 {
		g.SetExecutor(graph.NewPoolExecutor(a.PoolSize, rate.NewLimiter(rate.Inf, 1)))
	}

	var targets []*graph.Data
	for _, name := range a.Target {
		d := g.Data(name)
		if d == nil {
			return nil, fmt.Errorf("unknown target data slot %q", name)
		}
		targets = append(targets, d)
	}
	return &loaded{cfg: cfg, g: g, targets: targets}, nil
}

func runOnce(l *loaded) {
	start := time.Now()
	cl := l.g.Run(l.targets...)
	cl.Wait()
	code := cl.ErrorCode()
	runsTotal.WithLabelValues(l.cfg.Graph, codeLabel(code)).Inc()
	runLatency.WithLabelValues(l.cfg.Graph).Observe(time.Since(start).Seconds())
	if code != engine.CodeOK {
		log.Printf("run %s finished with code %d", cl.RunID(), code)
	}
	l.g.Reset()
}

func main() {
	log.SetFlags(log.LstdFlags)

	var a args
	arg.MustParse(&a)

	l, err := loadGraph(a)
	if err != nil {
		log.Fatal(err)
	}

	if a.Listen != "" {
		go serveMetrics(a.Listen)
	}

	runOnce(l)
	if a.Once {
		return
	}

	reload := watchConfig(a.File)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	log.Println("waiting for a signal to exit, or a config file change to reload; rerun with --once to run a single pass")
	for {
		select {
		case <-exit:
			log.Println("goodbye")
			return
		case <-reload:
			log.Printf("config file %s changed, reloading", a.File)
			next, err := loadGraph(a)
			if err != nil {
				log.Printf("reload failed, keeping the previous graph running: %v", err)
				continue
			}
			l = next
			runOnce(l)
		}
	}
}

// watchConfig watches file's containing directory with fsnotify (the same
// library mgmt's recwatch package wraps for its config-reload watcher) and
// returns a channel that receives a signal every time file itself is
// written or recreated. Scoped down from recwatch's recursive directory
// watch to the single file anyflowd actually loads.
func watchConfig(file string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("config watch: %v", err)
		return ch
	}
	dir := filepath.Dir(file)
	if err := watcher.Add(dir); err != nil {
		log.Printf("config watch: %v", err)
		watcher.Close()
		return ch
	}
	target := filepath.Clean(file)
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case ch <- struct{}{}:
				default: // a reload is already pending, drop the duplicate
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config watch: %v", err)
			}
		}
	}()
	return ch
}

func codeLabel(code int) string {
	switch code {
	case engine.CodeOK:
		return "ok"
	case engine.CodeFailed:
		return "failed"
	case engine.CodeEssentialFailed:
		return "essential_failed"
	case engine.CodeStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server: %v", err)
	}
}
