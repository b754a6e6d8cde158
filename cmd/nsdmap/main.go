package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"nsdmap/pkg/config"
	"nsdmap/pkg/logging"
	"nsdmap/pkg/space"
	"nsdmap/pkg/transform"
	"nsdmap/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configFile := flag.String("config", "nsdmap.yaml", "Configuration file (.yaml or .toml); defaults apply when missing")
	sourceSpace := flag.String("sourcespace", "", "Source space; a comma separated list of surfaces maps several surfaces into one volume")
	targetSpace := flag.String("targetspace", "", "Target space")
	inputFile := flag.String("inputfile", "", "Source data file; a comma separated list is concatenated along vertices")
	outputFile := flag.String("outputfile", "", "Output file (.nii, .nii.gz, .mgh or .mgz)")
	nsdLocation := flag.String("nsdlocation", "", "Directory containing nsddata (overrides the config)")
	subject := flag.Int("subjix", 0, "Subject index 1-8 (overrides the config)")
	interpType := flag.String("interptype", "", "nearest, linear, cubic, wta or surfacewta (overrides the config)")
	badVal := flag.Float64("badval", 0, "Value for locations without a valid source (overrides the config)")
	outputClass := flag.String("outputclass", "", "Output class, e.g. float32 or int16; default is the source class")
	fsDir := flag.String("fsdir", "", "FreeSurfer subject directory, required for surface output")
	transformFile := flag.String("transformfile", "", "Explicit transform file instead of the one under the subject directory")
	preview := flag.String("preview", "", "Save a PNG or JPEG mosaic of the first output volume")
	flag.Parse()

	if *sourceSpace == "" || *targetSpace == "" || *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *nsdLocation != "" {
		cfg.Data.NSDLocation = *nsdLocation
	}
	if err := logging.Setup(&cfg.Log); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Shutdown()

	req := &transform.Request{
		Subject:       *subject,
		InterpType:    *interpType,
		OutputClass:   *outputClass,
		OutputFile:    *outputFile,
		FSDir:         *fsDir,
		TransformFile: *transformFile,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "badval" {
			req.BadValue = badVal
		}
	})

	if req.Target, err = space.Parse(*targetSpace); err != nil {
		log.Fatalf("Invalid target space: %v", err)
	}
	if strings.Contains(*sourceSpace, ",") {
		if req.SourceList, err = space.ParseList(*sourceSpace); err != nil {
			log.Fatalf("Invalid source spaces: %v", err)
		}
	} else if req.Source, err = space.Parse(*sourceSpace); err != nil {
		log.Fatalf("Invalid source space: %v", err)
	}

	if files := strings.Split(*inputFile, ","); len(files) > 1 {
		list := make(transform.List, len(files))
		for i, f := range files {
			list[i] = transform.File(strings.TrimSpace(f))
		}
		req.Data = list
	} else {
		req.Data = transform.File(*inputFile)
	}

	mapper := transform.NewMapper(cfg, nil, nil)

	startTime := time.Now()
	res, err := mapper.Map(req)
	if err != nil {
		log.Fatalf("Mapping failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("Mapped %s (%s)\n", strings.TrimSpace(*sourceSpace), res.Case.Kind())
	fmt.Printf("Target space: %s\n", res.Case.Target())
	for _, f := range res.Case.Files() {
		fmt.Printf("Transform: %s\n", f)
	}
	summarize(res)
	fmt.Printf("Output class: %s\n", res.Type)
	fmt.Printf("Completed in %.2f seconds\n", processingTime.Seconds())
	if *outputFile != "" {
		fmt.Printf("Output saved to: %s\n", *outputFile)
	}

	if *preview != "" {
		if len(res.Volumes) == 0 {
			log.Printf("Warning: no volume to preview for %s output", res.Case.Target())
			return
		}
		if err := visualization.NewViewer(res.Volumes[0]).SaveMosaic("z", *preview); err != nil {
			log.Printf("Warning: failed to save preview: %v", err)
			return
		}
		fmt.Printf("Preview saved to: %s\n", *preview)
	}
}

// summarize prints the result shape and the mean and standard deviation of
// its finite values.
func summarize(res *transform.Result) {
	var values []float64
	switch {
	case res.Surface != nil:
		r, c := res.Surface.Dims()
		fmt.Printf("Shape: %d vertices x %d datasets\n", r, c)
		values = res.Surface.RawMatrix().Data
	case res.Complex != nil:
		d := res.Complex.Dims
		fmt.Printf("Shape: %dx%dx%d complex\n", d[0], d[1], d[2])
		re, _ := res.Complex.Split()
		values = re.Data
	default:
		d := res.Volumes.Dims()
		fmt.Printf("Shape: %dx%dx%d x %d volumes\n", d[0], d[1], d[2], len(res.Volumes))
		for _, v := range res.Volumes {
			values = append(values, v.Data...)
		}
	}

	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	fmt.Printf("Values: %s (%s finite)\n", humanize.Comma(int64(len(values))), humanize.Comma(int64(len(finite))))
	if len(finite) > 0 {
		mean, std := stat.MeanStdDev(finite, nil)
		fmt.Printf("Mean: %.4f  Std: %.4f\n", mean, std)
	}
}
