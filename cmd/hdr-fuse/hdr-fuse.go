package main

import(
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/abworrall/hdr-bracket/pkg/fusion"
)

var(
	fVerbosity int
	fOutputDir string
	fExposureSource string
	fAlign bool
	fFuser string
	fTonemapper string
	fPlotResponse bool
	fDumpWeights bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fOutputDir, "out", "", "where to write the outputs (default: the first dir given)")
	flag.StringVar(&fExposureSource, "exposure", "filename", "where to find exposure times: filename, manifest, embedded")
	flag.BoolVar(&fAlign, "align", false, "align the frames before fusing them")
	flag.StringVar(&fFuser, "fuser", "mertens", "exposure fusion engine: "+fusion.ListFusers())
	flag.StringVar(&fTonemapper, "tonemapper", "gamma", "how to tonemap from HDR to LDR: "+fusion.ListTonemappers()+", or all")
	flag.BoolVar(&fPlotResponse, "plotresponse", false, "draw the recovered response curve")
	flag.BoolVar(&fDumpWeights, "dumpweights", false, "write each frame's fusion weights as a PNG")
}

func main() {
	flag.Parse()
	log.Printf("hdr-fuse starting\n")

	if flag.NArg() == 0 {
		log.Fatal("usage: hdr-fuse [flags] <dir or frame files...>")
	}

	s := fusion.NewStack()
	s.Config.ExposureSource = fExposureSource
	if err := s.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}

	// Flags beat any config YAML found among the inputs
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":            s.Config.Verbosity = fVerbosity
		case "align":        s.Config.Align = fAlign
		case "fuser":        s.Config.Fuser = fFuser
		case "tonemapper":   s.Config.Tonemapper = fTonemapper
		case "plotresponse": s.Config.PlotResponse = fPlotResponse
		case "dumpweights":  s.Config.DumpWeights = fDumpWeights
		}
	})

	if s.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", s.Config.AsYaml())
	}

	out := fOutputDir
	if out == "" {
		out = flag.Arg(0)
		if fi, err := os.Stat(out); err == nil && !fi.IsDir() {
			out = filepath.Dir(out)
		}
	}

	written, err := s.Process(out)
	for _, f := range written {
		log.Printf("Wrote %s\n", f)
	}
	if err != nil {
		log.Fatal(err)
	}
}
