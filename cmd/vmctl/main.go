// Command vmctl is the bootable entry point tying the PFA, page-table
// facade, mmap manager, and fault resolver together into one runnable
// kernel simulation, with subcommands for booting, inspecting stats,
// serving a Prometheus /metrics endpoint, and summarizing a pprof profile
// file. CLI wiring grounded in the
// teacher's chentry.go-style "one binary with named subcommands" shape,
// using github.com/alecthomas/kingpin/v2 for flag/subcommand parsing —
// the actively maintained v2 fork of the API used by the wider example
// pack's kingpin.v1-era tooling.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/pprof/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afiqket/vmcore/config"
	"github.com/afiqket/vmcore/internal/statfmt"
	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/metrics"
	"github.com/afiqket/vmcore/mmapmgr"
	"github.com/afiqket/vmcore/swap"
)

var (
	app = kingpin.New("vmctl", "Control and inspect the teaching kernel's virtual-memory subsystem.")

	bootCmd     = app.Command("boot", "Boot the simulated kernel and report its initial frame budget.")
	bootNFrames = bootCmd.Flag("nframes", "Total physical frames to manage.").Default("4096").Int()
	bootConfig  = bootCmd.Flag("config", "Path to a tuning file (nframes=, max_mmaps_sys=, max_mmaps_proc=).").String()

	statCmd = app.Command("stat", "Report current allocator and mmap-manager statistics.")

	serveCmd    = app.Command("serve", "Run a long-lived instance exposing /metrics and hot-reloading its tuning file.")
	serveAddr   = serveCmd.Flag("addr", "Listen address for the metrics endpoint.").Default(":9400").String()
	serveConfig = serveCmd.Flag("config", "Path to a tuning file to watch for changes.").Required().String()

	swapCmd         = app.Command("swap", "Inspect or create a swap image.")
	swapInspectCmd  = swapCmd.Command("inspect", "Open a swap image, rejecting an incompatible major format version, and print the format version this build reads.")
	swapInspectPath = swapInspectCmd.Arg("path", "Path to the swap image.").Required().String()

	profileCmd  = app.Command("profile", "Load a pprof profile captured from a prior vmctl run and summarize it.")
	profilePath = profileCmd.Arg("path", "Path to a pprof profile.").Required().String()
)

// kernel bundles the simulation's live pieces, constructed fresh by boot
// and serve.
type kernel struct {
	alloc *mem.Allocator
	arena *mem.Arena
	mm    *mmapmgr.Manager
}

func bootKernel(nframes int) *kernel {
	alloc := mem.NewAllocator(nframes)
	arena := mem.NewArena(nframes)
	// Two-phase init per spec.md §4.1: all frames handed to phase 1 here
	// since this standalone binary has no separate "early boot stack"
	// range distinct from the rest of memory.
	alloc.KInit1(0, mem.Frame(nframes))
	alloc.KInit2(mem.Frame(nframes), mem.Frame(nframes))
	return &kernel{alloc: alloc, arena: arena, mm: mmapmgr.New(alloc, arena)}
}

func main() {
	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case bootCmd.FullCommand():
		runBoot()
	case statCmd.FullCommand():
		runStat()
	case serveCmd.FullCommand():
		runServe()
	case swapInspectCmd.FullCommand():
		runSwapInspect()
	case profileCmd.FullCommand():
		runProfile()
	}
}

func runBoot() {
	nframes := *bootNFrames
	if *bootConfig != "" {
		t, err := config.Load(*bootConfig)
		if err != nil {
			kingpin.Fatalf("%v", err)
		}
		if t.NFrames > 0 {
			nframes = t.NFrames
		}
	}
	k := bootKernel(nframes)
	p := statfmt.New("en")
	fmt.Println(p.Frames(k.alloc.NFrames()))
	fmt.Printf("free: %s, in-use: %s\n", p.Frames(k.alloc.FreesCount()), p.Frames(k.alloc.InUse()))
}

func runStat() {
	k := bootKernel(4096)
	p := statfmt.New("en")
	fmt.Println(p.Frames(k.alloc.NFrames()))
	fmt.Printf("free: %s\n", p.Frames(k.alloc.FreesCount()))
	fmt.Printf("in-use: %s\n", p.Frames(k.alloc.InUse()))
	fmt.Printf("mmap regions in use: %d\n", k.mm.SysCount())
}

func runServe() {
	reg := prometheus.NewRegistry()
	k := bootKernel(4096)
	if _, err := metrics.NewAllocator(reg, k.alloc); err != nil {
		kingpin.Fatalf("%v", err)
	}
	if _, err := metrics.NewMmap(reg, k.mm); err != nil {
		kingpin.Fatalf("%v", err)
	}

	w, err := config.WatchFile(*serveConfig, func(t config.Tuning) {
		fmt.Printf("tuning reloaded: %+v\n", t)
	})
	if err != nil {
		kingpin.Fatalf("%v", err)
	}
	defer w.Close()

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	fmt.Printf("serving on %s\n", *serveAddr)
	if err := http.ListenAndServe(*serveAddr, nil); err != nil {
		kingpin.Fatalf("%v", err)
	}
}

func runSwapInspect() {
	d, err := swap.Open(*swapInspectPath)
	if err != nil {
		kingpin.Fatalf("%v", err)
	}
	defer d.Close()
	fmt.Printf("swap image %s: compatible with format version %s\n", *swapInspectPath, swap.FormatVersion)
}

func runProfile() {
	f, err := os.Open(*profilePath)
	if err != nil {
		kingpin.Fatalf("%v", err)
	}
	defer f.Close()
	prof, err := profile.Parse(f)
	if err != nil {
		kingpin.Fatalf("%v", err)
	}
	fmt.Printf("profile %s: %d samples, %d locations, %d functions\n",
		*profilePath, len(prof.Sample), len(prof.Location), len(prof.Function))
}
