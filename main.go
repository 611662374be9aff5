package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	draw9 "9fans.net/go/draw"
	xdraw "golang.org/x/image/draw"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anastasop/snapview/internal/config"
	"github.com/anastasop/snapview/internal/display"
	"github.com/anastasop/snapview/internal/imagefile"
	"github.com/anastasop/snapview/internal/picture"
)

const (
	progName = "snapview"

	darkgrey = draw9.Color(uint32(0x666666FF))
	yellow   = draw9.Color(uint32(0xFFFF00FF))

	escKey = 27
)

var (
	windowSizeFlag = flag.String("w", "1000x800", "set window size")
	silent         = flag.Bool("q", false, "silent mode, do not log anything")
	verbose        = flag.Bool("v", false, "verbose mode, log every request")
	fast           = flag.Bool("f", false, "choose fast over best algorithms for scaling")
	envFile        = flag.String("env", "", "read configuration from `file` instead of .env")
	endpointFlag   = flag.String("endpoint", "", "picture service `url`, overrides SNAPVIEW_ENDPOINT")
	orderingFlag   = flag.String("ordering", "", "apply overlapping replies by `policy`: arrival, sequenced or single")
	assetsFlag     = flag.String("assets", "", "serve relative locators from `dir`, overrides SNAPVIEW_ASSET_DIR")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [-f|-q|-v] [-w WxH] [-env file] [-endpoint url] [-ordering policy] [-assets dir]

%s shows an image and asks a picture service for a new one on demand.
Click the button or type t to take a new picture, q to quit.

Flags:
`, progName, progName)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() > 0 {
		usage()
	}

	log, err := newLogger(*silent, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal(progName, zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	windowSize, ok := stringToPoint(*windowSizeFlag)
	if !ok {
		return fmt.Errorf("cannot compute window size from %s", *windowSizeFlag)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ordering, err := display.ParseOrdering(cfg.Ordering)
	if err != nil {
		return err
	}

	scaler := xdraw.Scaler(xdraw.CatmullRom)
	if *fast {
		scaler = xdraw.BiLinear
	}

	ctrl := display.New(cfg.DefaultLocator(), picture.NewClient(cfg.Endpoint),
		display.WithLogger(log), display.WithOrdering(ordering))
	resolver := &imagefile.Resolver{AssetDir: cfg.AssetDir, PublicURL: cfg.PublicURL}
	log.Info("starting",
		zap.String("image", ctrl.State().ImageLocation),
		zap.String("endpoint", cfg.Endpoint),
		zap.Stringer("ordering", ordering))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plumber := connectToPlumber(log)
	dctl, err := connectToDisplay(windowSize, log)
	if err != nil {
		return err
	}

	v := NewViewer(ctrl, resolver, plumber, scaler, log)
	v.Connect(dctl)
	v.Handle(ctx)
	v.Free()
	return nil
}

// loadConfig reads the environment and applies the flags set on the command line.
func loadConfig() (*config.Config, error) {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "endpoint":
			cfg.Endpoint = *endpointFlag
		case "ordering":
			cfg.Ordering = *orderingFlag
		case "assets":
			cfg.AssetDir = *assetsFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(silent, verbose bool) (*zap.Logger, error) {
	if silent {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func stringToPoint(s string) (image.Point, bool) {
	fields := strings.Split(s, "x")
	if len(fields) != 2 {
		return image.Point{}, false
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return image.Point{}, false
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return image.Point{}, false
	}
	return image.Pt(x, y), true
}
