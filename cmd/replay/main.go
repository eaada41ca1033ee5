package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"haulcraft.sim/internal/sim/world"
)

func main() {
	var (
		transfersDir = flag.String("transfers", "", "dir containing transfers-*.jsonl.zst")
		fromTick     = flag.Uint64("from_tick", 0, "start from tick (inclusive, optional)")
		toTick       = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		verbose      = flag.Bool("v", false, "print every transfer")
	)
	flag.Parse()

	if *transfersDir == "" {
		fmt.Fprintln(os.Stderr, "missing -transfers")
		os.Exit(2)
	}

	files, err := listTransferFiles(*transfersDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list transfer logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no transfers-*.jsonl.zst files in", *transfersDir)
		os.Exit(1)
	}

	count := 0
	byResource := map[string]int{}
	byDestination := map[string]int{}
	var firstTick, lastTick uint64

	for _, path := range files {
		if err := readTransferFile(path, func(e world.TransferLogEntry) {
			if *fromTick > 0 && e.Tick < *fromTick {
				return
			}
			if *toTick > 0 && e.Tick > *toTick {
				return
			}
			if count == 0 || e.Tick < firstTick {
				firstTick = e.Tick
			}
			if e.Tick > lastTick {
				lastTick = e.Tick
			}
			count++
			byResource[e.Resource] += e.Amount
			byDestination[e.Destination] += e.Amount
			if *verbose {
				fmt.Printf("t=%d %s: %s -> %s %dx %s\n", e.Tick, e.TransferID, e.Source, e.Destination, e.Amount, e.Resource)
			}
		}); err != nil {
			fmt.Fprintln(os.Stderr, "read", path, ":", err)
			os.Exit(1)
		}
	}

	fmt.Printf("transfers=%d ticks=[%d..%d]\n", count, firstTick, lastTick)
	printTotals("by resource", byResource)
	printTotals("by destination", byDestination)
}

func listTransferFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "transfers-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func readTransferFile(path string, fn func(world.TransferLogEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e world.TransferLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		fn(e)
	}
	return sc.Err()
}

func printTotals(label string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println(label + ":")
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, m[k])
	}
}
