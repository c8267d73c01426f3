// Package chart renders the error curve and singular value spectrum of a
// decomposition as an HTML page.
package chart

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/yyyoichi/svdimage/internal/score"
)

// missing is drawn by echarts as a gap
const missing = "-"

// Series is the singular values of one channel.
type Series struct {
	Name   string
	Values []float64
}

// ErrorCurve plots MSE (left axis) and PSNR (right axis) against rank.
// reports must be ordered by rank.
func ErrorCurve(title string, reports []score.Report) *charts.Line {
	ranks := make([]string, len(reports))
	mse := make([]opts.LineData, len(reports))
	psnr := make([]opts.LineData, len(reports))
	for i, r := range reports {
		rank := r.Rank
		if rank == 0 {
			rank = i + 1
		}
		ranks[i] = strconv.Itoa(rank)
		mse[i] = opts.LineData{Value: r.MSE, Name: fmt.Sprintf("rank %d: MSE=%.4f", rank, r.MSE)}
		// identical images have infinite PSNR, which JSON cannot carry
		if math.IsInf(r.PSNR, 0) || math.IsNaN(r.PSNR) {
			psnr[i] = opts.LineData{Value: missing, Name: fmt.Sprintf("rank %d: exact", rank)}
		} else {
			psnr[i] = opts.LineData{Value: r.PSNR, Name: fmt.Sprintf("rank %d: PSNR=%.2fdB", rank, r.PSNR)}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Approximation error by rank",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Rank",
			Type: "category",
			Data: ranks,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "MSE",
			Type: "value",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "slider",
			Start: 0,
			End:   100,
		}),
	)
	line.SetXAxis(ranks)
	line.AddSeries("MSE", mse,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
	)
	line.ExtendYAxis(opts.YAxis{
		Name: "PSNR (dB)",
		Type: "value",
		AxisLabel: &opts.AxisLabel{
			Formatter: "{value} dB",
		},
	})
	line.AddSeries("PSNR", psnr,
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			YAxisIndex: 1,
		}),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
	)
	return line
}

// Spectrum plots the singular values of every channel on a log scale.
// Zero values are left out.
func Spectrum(title string, series []Series) *charts.Line {
	n := 0
	for _, s := range series {
		n = max(n, len(s.Values))
	}
	index := make([]string, n)
	for i := range index {
		index[i] = strconv.Itoa(i + 1)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Singular values",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "i",
			Type: "category",
			Data: index,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "σ",
			Type: "log",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "5%",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
	)
	line.SetXAxis(index)
	for _, s := range series {
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			if v > 0 {
				data[i] = opts.LineData{Value: v}
			} else {
				data[i] = opts.LineData{Value: missing}
			}
		}
		line.AddSeries(s.Name, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)
	}
	return line
}

// Render writes the error curve and, when series is not empty, the spectrum
// to w as one HTML page.
func Render(w io.Writer, title string, reports []score.Report, series []Series) error {
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(ErrorCurve(title, reports))
	if len(series) > 0 {
		page.AddCharts(Spectrum(title, series))
	}
	return page.Render(w)
}
