package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/cheggaaa/pb/v3"

	"dragonfly-id/internal/app"
	"dragonfly-id/internal/bootstrap"
	"dragonfly-id/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config file")
	quiet := flag.Bool("q", false, "hide the progress bar")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("usage: %s [-config path] [-q] <image|dir>...", filepath.Base(os.Args[0]))
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	paths, err := collectImages(flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if len(paths) == 0 {
		log.Fatal("no images found")
	}

	identifier := bootstrap.NewIdentifier(cfg.Vision)
	defer func() {
		if err := identifier.Close(); err != nil {
			log.Printf("close identifier failed: %v", err)
		}
	}()

	var bar *pb.ProgressBar
	if !*quiet {
		bar = pb.StartNew(len(paths))
	}

	lines := make([]string, 0, len(paths))
	for _, path := range paths {
		p := identifier.Identify(path)
		if p == nil {
			lines = append(lines, fmt.Sprintf("%s\tunable to identify", path))
		} else {
			lines = append(lines, fmt.Sprintf("%s\t%s\t%.2f\t%s", path, p.Label, p.Confidence, p.Source))
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}

// collectImages expands directories to their image files; explicit files are kept as given.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Missing files still go through the pipeline, which falls back on them.
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && app.IsImageFile(e.Name()) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
