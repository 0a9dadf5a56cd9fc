// Command bufpoolctl is a small REPL for manually exercising one buffer
// pool instance during development: pin, unpin, mark pages dirty, force
// writes, and inspect frame state, without a wire protocol in front of it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"

	"github.com/tuannm99/pagecache/internal/bufferpool"
	"github.com/tuannm99/pagecache/internal/poolconfig"
	"github.com/tuannm99/pagecache/internal/replacement"
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".bufpoolctl_history"
	}
	return filepath.Join(home, ".bufpoolctl_history")
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a pool.yaml config (overrides the flags below)")
		pageFile   = flag.String("page-file", "bufpool.page", "page file path")
		numFrames  = flag.Int("frames", 16, "number of frames")
		strategy   = flag.String("strategy", "fifo", "replacement strategy: fifo, lru, clock, lfu")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	file := *pageFile
	frames := *numFrames
	strat := parseStrategy(*strategy)

	if *configPath != "" {
		cfg, err := poolconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		file = cfg.Pool.PageFile
		frames = cfg.Pool.NumFrames
		strat = cfg.Strategy()
	}

	pool, err := bufferpool.Init(afero.NewOsFs(), file, frames, strat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bufpoolctl> ",
		HistoryFile:     *histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("bufpoolctl: %s, %d frames, %s\n", file, frames, strat.String())
	fmt.Println("type \\help for commands")

	repl(rl, pool)

	if err := pool.Shutdown(); err != nil {
		slog.Error("bufpoolctl: shutdown failed", "err", err)
		fmt.Printf("shutdown error: %v\n", err)
	}
}

func repl(rl *readline.Instance, pool *bufferpool.Pool) {
	handles := make(map[uint32]*bufferpool.PageHandle)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "\\q", "quit", "exit":
			return
		case "\\help":
			printHelp()
		case "pin":
			runPin(pool, handles, args)
		case "unpin":
			runUnpin(pool, handles, args)
		case "dirty":
			runDirty(pool, handles, args)
		case "force":
			runForce(pool, handles, args)
		case "flush":
			if err := pool.ForceFlush(); err != nil {
				fmt.Printf("error: %v\n", err)
			} else {
				fmt.Println("OK")
			}
		case "stats":
			printStats(pool)
		case "frames":
			printFrames(pool)
		default:
			fmt.Printf("unknown command: %s (try \\help)\n", cmd)
		}
	}
}

func parseStrategy(s string) replacement.Strategy {
	switch strings.ToLower(s) {
	case "lru":
		return replacement.LRU
	case "clock":
		return replacement.Clock
	case "lfu":
		return replacement.LFU
	default:
		return replacement.FIFO
	}
}

func parsePageNo(args []string) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one page number")
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q: %w", args[0], err)
	}
	return uint32(n), nil
}

func runPin(pool *bufferpool.Pool, handles map[uint32]*bufferpool.PageHandle, args []string) {
	pageNo, err := parsePageNo(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	h, err := pool.Pin(pageNo)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	handles[pageNo] = h
	fmt.Printf("pinned page %d\n", pageNo)
}

func runUnpin(pool *bufferpool.Pool, handles map[uint32]*bufferpool.PageHandle, args []string) {
	pageNo, err := parsePageNo(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	h, ok := handles[pageNo]
	if !ok {
		fmt.Printf("no local handle for page %d, pin it first\n", pageNo)
		return
	}
	if err := pool.Unpin(h); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("unpinned page %d\n", pageNo)
}

func runDirty(pool *bufferpool.Pool, handles map[uint32]*bufferpool.PageHandle, args []string) {
	pageNo, err := parsePageNo(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	h, ok := handles[pageNo]
	if !ok {
		fmt.Printf("no local handle for page %d, pin it first\n", pageNo)
		return
	}
	if err := pool.MarkDirty(h); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("marked page %d dirty\n", pageNo)
}

func runForce(pool *bufferpool.Pool, handles map[uint32]*bufferpool.PageHandle, args []string) {
	pageNo, err := parsePageNo(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	h, ok := handles[pageNo]
	if !ok {
		fmt.Printf("no local handle for page %d, pin it first\n", pageNo)
		return
	}
	if err := pool.ForcePage(h); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("forced page %d to disk\n", pageNo)
}

func printStats(pool *bufferpool.Pool) {
	fmt.Printf("reads=%d writes=%d\n", pool.NumReadIO(), pool.NumWriteIO())
}

func printFrames(pool *bufferpool.Pool) {
	contents := pool.FrameContents()
	dirty := pool.DirtyFlags()
	fixCounts := pool.FixCounts()
	for i := range contents {
		page := "empty"
		if contents[i] != bufferpool.NoPage {
			page = strconv.FormatUint(uint64(contents[i]), 10)
		}
		fmt.Printf("frame %3d  page=%-6s dirty=%-5v fix=%d\n", i, page, dirty[i], fixCounts[i])
	}
}

func printHelp() {
	fmt.Println(`commands:
  pin <n>      pin page n, loading it on a miss
  unpin <n>    unpin page n
  dirty <n>    mark page n dirty
  force <n>    write page n back to disk and clear its dirty bit
  flush        write back every dirty frame
  stats        show read/write I/O counters
  frames       show per-frame residency, dirty bit, and fix count
  \q | quit | exit`)
}
