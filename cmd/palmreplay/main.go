// Command palmreplay runs a recorded landmark trace through the gesture
// pipeline and prints every fire.
//
// Usage:
//
//	palmreplay -trace run.jsonl [-html run.html] [-png run.png]
//
// Pipeline settings come from the PALMCHEF_* environment variables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayusman/palmchef/internal/config"
	"github.com/ayusman/palmchef/internal/replay"
	"github.com/ayusman/palmchef/internal/report"
	"github.com/ayusman/palmchef/internal/session"
)

func main() {
	tracePath := flag.String("trace", "", "JSON lines trace file ({\"t\":ms,\"landmarks\":[...]} per line)")
	htmlPath := flag.String("html", "", "write an HTML timeline to this file")
	pngPath := flag.String("png", "", "write a PNG timeline to this file")
	title := flag.String("title", "", "chart title (defaults to the trace file name)")
	flag.Parse()

	if *tracePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	f, err := os.Open(*tracePath)
	if err != nil {
		log.Fatalf("Failed to open trace: %v", err)
	}
	frames, err := replay.ReadTrace(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *tracePath, err)
	}

	collector := &report.Collector{}
	res, err := replay.Run(cfg.Session(session.SourceReplay), frames, collector)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	for _, u := range res.Fires {
		l, _ := u.Fire()
		fmt.Printf("%8dms  %-6s  %.2f  %d\n", u.Offset.Milliseconds(), l, u.Live.Confidence, u.Votes)
	}
	fmt.Printf("%d frames, %d processed, %d fires\n", res.Frames, res.Processed, len(res.Fires))

	if *title == "" {
		*title = filepath.Base(*tracePath)
	}

	if *htmlPath != "" {
		out, err := os.Create(*htmlPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *htmlPath, err)
		}
		if err := report.RenderHTML(out, *title, collector.Samples()); err != nil {
			out.Close()
			log.Fatalf("Failed to render HTML: %v", err)
		}
		if err := out.Close(); err != nil {
			log.Fatalf("Failed to write %s: %v", *htmlPath, err)
		}
		fmt.Printf("Wrote %s\n", *htmlPath)
	}

	if *pngPath != "" {
		if err := report.RenderPNG(*pngPath, *title, collector.Samples()); err != nil {
			log.Fatalf("Failed to render PNG: %v", err)
		}
		fmt.Printf("Wrote %s\n", *pngPath)
	}
}
