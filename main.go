package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/lumipallolabs/qrlens/internal/batch"
	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/ui"
)

const version = "0.2.0"

func main() {
	decodePath := pflag.String("decode", "", "sweep a directory tree for QR codes in image files instead of scanning")
	device := pflag.String("device", "", "camera to scan with (id or label)")
	workers := pflag.Int("workers", 8, "parallel workers for --decode")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("qrlens " + version)
		return
	}

	// Enable CPU profiling if CPUPROFILE env var is set
	if cpuProfile := os.Getenv("CPUPROFILE"); cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", cpuProfile)
	}

	if *decodePath != "" {
		if err := runBatch(*decodePath, *workers); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	p := tea.NewProgram(
		ui.NewApp(version, *device),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runBatch sweeps a tree for QR codes and prints one finding per line:
// path, symbology and payload, tab-separated.
func runBatch(root string, workers int) error {
	w := batch.NewWalker(workers, func() decode.Decoder { return decode.NewQR() })

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for p := range w.Progress() {
			fmt.Fprintf(os.Stderr, "\r%d files, %d images, %d codes",
				p.FilesScanned, p.ImagesTried, p.CodesFound)
		}
		fmt.Fprintln(os.Stderr)
	}()

	findings, err := w.Scan(context.Background(), root)
	<-progressDone
	if err != nil {
		return err
	}

	for _, f := range findings {
		fmt.Printf("%s\t%s\t%s\n", f.Path, f.Symbology, f.Payload)
	}
	if len(findings) == 0 {
		fmt.Fprintln(os.Stderr, "no codes found")
	}
	return nil
}
