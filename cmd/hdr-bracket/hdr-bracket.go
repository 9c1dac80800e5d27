package main

import(
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/abworrall/hdr-bracket/pkg/app"
	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/fusion"
)

var(
	fConfigFile string
	fVerbosity int
	fGain float64
	fExpMin float64
	fExpMax float64
	fRoot string
	fCamera string
	fCameraIndex int
	fFormat string
	fPurge int
	fTonemapper string
	fAlign bool
	fNoFuse bool
	fNoSpinner bool
	fBroker string
)

// flagKeys maps each flag onto its config key; only flags given on the
// command line override the config file and environment.
var flagKeys = map[string]string{
	"v":          "verbosity",
	"gain":       "capture.gain",
	"exp_min":    "capture.exp_min",
	"exp_max":    "capture.exp_max",
	"root":       "root",
	"camera":     "camera.driver",
	"index":      "camera.index",
	"format":     "capture.format",
	"purge":      "capture.purge",
	"tonemapper": "fusion.tonemapper",
	"align":      "fusion.align",
	"nofuse":     "nofuse",
	"mqtt":       "mqtt.broker",
}

func init() {
	flag.StringVar(&fConfigFile, "config", "hdr-bracket.yaml", "YAML config file (optional)")
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.Float64Var(&fGain, "gain", 1.0, "sensor gain in dB, applied with auto gain off")
	flag.Float64Var(&fExpMin, "exp_min", 30, "shortest exposure, in microseconds")
	flag.Float64Var(&fExpMax, "exp_max", 65000, "longest exposure, in microseconds")
	flag.StringVar(&fRoot, "root", "images", "frames are written to <root>/<dirname>")
	flag.StringVar(&fCamera, "camera", "", fmt.Sprintf("camera driver %v (default %s)", camera.Drivers(), app.HardwareDriver))
	flag.IntVar(&fCameraIndex, "index", 0, "which attached camera to use")
	flag.StringVar(&fFormat, "format", "jpg", "frame file format: jpg, png, fits")
	flag.IntVar(&fPurge, "purge", 0, "frames to throw away after each exposure change")
	flag.StringVar(&fTonemapper, "tonemapper", "gamma", "how to tonemap from HDR to LDR: "+fusion.ListTonemappers()+", or all")
	flag.BoolVar(&fAlign, "align", false, "align the frames before fusing them")
	flag.BoolVar(&fNoFuse, "nofuse", false, "capture only, skip the fusion")
	flag.BoolVar(&fNoSpinner, "nospinner", false, "no progress spinner during fusion")
	flag.StringVar(&fBroker, "mqtt", "", "MQTT broker to publish events to, e.g. tcp://localhost:1883")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] num_images dirname\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func isBoolFlag(arg string) bool {
	name := strings.TrimLeft(arg, "-")
	f := flag.Lookup(name)
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// reorderArgs moves flags ahead of the positional args, so that
// `hdr-bracket 5 mydir --gain 2` works.
func reorderArgs(args []string) []string {
	flags, positional := []string{}, []string{}
	for i:=0; i<len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			positional = append(positional, args[i+1:]...)
			i = len(args)
		case len(arg) > 1 && strings.HasPrefix(arg, "-"):
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && !isBoolFlag(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
		default:
			positional = append(positional, arg)
		}
	}
	return append(append(flags, "--"), positional...)
}

// overrides collects the flags that were actually set.
func overrides() map[string]interface{} {
	vals := map[string]interface{}{}
	flag.Visit(func(f *flag.Flag) {
		if key, exists := flagKeys[f.Name]; exists {
			vals[key] = f.Value.(flag.Getter).Get()
		}
	})
	if fNoSpinner {
		vals["spinner"] = false
	}
	return vals
}

func main() {
	flag.CommandLine.Parse(reorderArgs(os.Args[1:]))
	log.Printf("hdr-bracket starting\n")

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	n, err := strconv.Atoi(flag.Arg(0))
	if err != nil || n < 1 {
		log.Printf("num_images: want a positive integer, got '%s'\n", flag.Arg(0))
		os.Exit(1)
	}

	vals := overrides()
	vals["capture.num_images"] = n
	vals["dirname"] = flag.Arg(1)

	a, err := app.Load(fConfigFile, vals)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := a.Run(ctx)
	if err != nil {
		log.Printf("Error: %v\n", err)
		stop()
		os.Exit(1)
	}

	log.Printf("Done, %d frames and %d outputs in %s\n", len(res.Capture.Saved), len(res.Outputs), res.Dir)
}
