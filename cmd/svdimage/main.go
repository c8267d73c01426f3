// Command svdimage decomposes an image and reports or exports its low-rank
// approximations.
//
//	svdimage -in photo.jpg -mode yuv -report
//	svdimage -in photo.jpg -rank 20 -out rank20.png -chart error.html -spectrum sigma.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/yyyoichi/svdimage"
	"github.com/yyyoichi/svdimage/internal/chart"
	"github.com/yyyoichi/svdimage/internal/config"
	"github.com/yyyoichi/svdimage/internal/imageio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "svdimage: %v\n", err)
		os.Exit(1)
	}
}

type params struct {
	in, configPath, writeConfig string
	out, chartPath, spectrum    string
	rank                        int
	report                      bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("svdimage", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		p         params
		mode      = fs.String("mode", "", "channel mode: gray, rgb or yuv")
		method    = fs.String("method", "", "decomposition method: lapack, jacobi or gram")
		maxRank   = fs.Int("max-rank", 0, "cap on the number of approximations, 0 keeps all")
		maxSide   = fs.Int("max-side", 0, "downscale so the longer side is at most this, 0 disables")
		maxSweeps = fs.Int("max-sweeps", 0, "jacobi sweep budget")
		quality   = fs.Int("quality", 0, "jpeg quality of -out")
		verbose   = fs.Bool("v", false, "debug logging")
	)
	fs.StringVar(&p.in, "in", "", "input image (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVar(&p.configPath, "config", "svdimage.yaml", "YAML config file, ignored when missing")
	fs.StringVar(&p.writeConfig, "write-config", "", "write the effective config to this path and exit")
	fs.IntVar(&p.rank, "rank", 0, "rank to export with -out")
	fs.StringVar(&p.out, "out", "", "output image for -rank (.png, .jpg, .bmp, .tiff)")
	fs.StringVar(&p.chartPath, "chart", "", "write an HTML error curve to this path")
	fs.StringVar(&p.spectrum, "spectrum", "", "plot the singular values to this image (.png, .svg, .pdf)")
	fs.BoolVar(&p.report, "report", false, "print the error of every rank")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(p.configPath)
	if err != nil {
		return err
	}
	// flags given explicitly win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Decomposition.Mode = *mode
		case "method":
			cfg.Decomposition.Method = *method
		case "max-rank":
			cfg.Decomposition.MaxRank = *maxRank
		case "max-sweeps":
			cfg.Decomposition.MaxSweeps = *maxSweeps
		case "max-side":
			cfg.Input.MaxSide = *maxSide
		case "quality":
			cfg.Output.JPEGQuality = *quality
		case "v":
			cfg.Output.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	if p.writeConfig != "" {
		return config.SaveConfig(cfg, p.writeConfig)
	}
	if p.in == "" {
		fs.Usage()
		return errors.New("-in is required")
	}
	if (p.rank == 0) != (p.out == "") {
		return errors.New("-rank and -out must be given together")
	}

	level := zerolog.InfoLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()

	return process(ctx, cfg, p, logger, stdout)
}

func options(cfg *config.Config, logger zerolog.Logger) ([]svdimage.Option, error) {
	mode, err := svdimage.ParseMode(cfg.Decomposition.Mode)
	if err != nil {
		return nil, err
	}
	method, err := svdimage.ParseMethod(cfg.Decomposition.Method)
	if err != nil {
		return nil, err
	}
	return []svdimage.Option{
		svdimage.WithMode(mode),
		svdimage.WithMethod(method),
		svdimage.WithMaxSweeps(cfg.Decomposition.MaxSweeps),
		svdimage.WithTolerance(cfg.Decomposition.Tolerance),
		svdimage.WithMaxRank(cfg.Decomposition.MaxRank),
		svdimage.WithLogger(logger),
	}, nil
}

func process(ctx context.Context, cfg *config.Config, p params, logger zerolog.Logger, stdout io.Writer) error {
	opts, err := options(cfg, logger)
	if err != nil {
		return err
	}
	s, err := svdimage.New(opts...)
	if err != nil {
		return err
	}

	src, format, err := imageio.Open(p.in)
	if err != nil {
		return err
	}
	b := src.Bounds()
	src = imageio.Downscale(src, cfg.Input.MaxSide)
	logger.Info().
		Str("file", p.in).
		Str("format", format).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("scaled_width", src.Bounds().Dx()).
		Int("scaled_height", src.Bounds().Dy()).
		Msg("image decoded")

	start := time.Now()
	if err := s.Load(ctx, src); err != nil {
		return err
	}
	logger.Info().
		Int("ranks", s.Rank()).
		Int("suggested_rank", s.SuggestedRank()).
		Dur("elapsed", time.Since(start)).
		Msg("decomposition done")

	var reports []svdimage.Report
	if p.report || p.chartPath != "" {
		reports = make([]svdimage.Report, 0, s.Rank())
		for k := 1; k <= s.Rank(); k++ {
			rep, err := s.CompareRank(k)
			if err != nil {
				return err
			}
			reports = append(reports, rep)
		}
	}
	if p.report {
		if err := printReports(stdout, s, reports); err != nil {
			return err
		}
	}

	if p.out != "" {
		img, err := s.Image(p.rank)
		if err != nil {
			return err
		}
		if err := imageio.Save(p.out, img, cfg.Output.JPEGQuality); err != nil {
			return err
		}
		logger.Info().Int("rank", p.rank).Str("file", p.out).Msg("approximation written")
	}

	if p.chartPath != "" {
		if err := writeChart(p.chartPath, filepath.Base(p.in), s, reports); err != nil {
			return err
		}
		logger.Info().Str("file", p.chartPath).Msg("chart written")
	}

	if p.spectrum != "" {
		if err := writeSpectrum(p.spectrum, filepath.Base(p.in), s); err != nil {
			return err
		}
		logger.Info().Str("file", p.spectrum).Msg("spectrum written")
	}
	return nil
}

func printReports(w io.Writer, s *svdimage.SVDImage, reports []svdimage.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tmse\tmae\tpsnr(dB)\tresidual\t")
	for _, r := range reports {
		res, err := s.Residual(r.Rank)
		if err != nil {
			return err
		}
		var sum float64
		for _, v := range res {
			sum += v * v
		}
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.2f\t%.4f\t\n", r.Rank, r.MSE, r.MAE, r.PSNR, math.Sqrt(sum))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "suggested rank: %d\n", s.SuggestedRank())
	return err
}

func spectrumSeries(s *svdimage.SVDImage) []chart.Series {
	names := s.Mode().Names()
	var series []chart.Series
	for i, sv := range s.SingularValues() {
		series = append(series, chart.Series{Name: names[i], Values: sv})
	}
	return series
}

func writeChart(path, title string, s *svdimage.SVDImage, reports []svdimage.Report) (err error) {
	series := spectrumSeries(s)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return chart.Render(f, title, reports, series)
}

func writeSpectrum(path, title string, s *svdimage.SVDImage) (err error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return chart.WriteSpectrum(f, title, spectrumSeries(s), format)
}
