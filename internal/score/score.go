package score

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/yyyoichi/svdimage/internal/channel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrDimensionMismatch = errors.New("image dimensions do not match")

const peak = 255.0

// ChannelError holds the difference measures of one channel, in 8-bit units.
type ChannelError struct {
	Name string
	MSE  float64
	MAE  float64
	RMSE float64
	PSNR float64
}

// Report is the difference between an approximation and its original.
// Aggregate values are taken over every sample of every channel.
type Report struct {
	// Rank of the compared approximation, 0 when unknown.
	Rank          int
	Width, Height int
	Channels      []ChannelError

	MSE  float64
	MAE  float64
	RMSE float64
	PSNR float64
}

// Zero reports whether the two images were identical.
func (r Report) Zero() bool { return r.MSE == 0 }

func (r Report) String() string {
	var b strings.Builder
	if r.Rank > 0 {
		fmt.Fprintf(&b, "rank=%d ", r.Rank)
	}
	fmt.Fprintf(&b, "mse=%.4f mae=%.4f rmse=%.4f psnr=%s", r.MSE, r.MAE, r.RMSE, formatPSNR(r.PSNR))
	for _, c := range r.Channels {
		fmt.Fprintf(&b, " %s:%.4f", c.Name, c.MSE)
	}
	return b.String()
}

func formatPSNR(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2fdB", v)
}

// PSNR converts a mean squared error in 8-bit units into decibels.
func PSNR(mse float64) float64 {
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(peak*peak/mse)
}

// Compare measures approx against original channel by channel, splitting both
// with mode. Neither image is modified.
func Compare(approx, original image.Image, mode channel.Mode) (Report, error) {
	if approx == nil || original == nil {
		return Report{}, fmt.Errorf("%w: nil image", channel.ErrFormat)
	}
	ab, ob := approx.Bounds(), original.Bounds()
	if ab.Dx() != ob.Dx() || ab.Dy() != ob.Dy() {
		return Report{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), ob.Dx(), ob.Dy())
	}
	names := mode.Names()
	if len(names) == 0 {
		return Report{}, fmt.Errorf("%w: %s", channel.ErrFormat, mode)
	}
	rep := Report{
		Width:    ob.Dx(),
		Height:   ob.Dy(),
		Channels: make([]ChannelError, len(names)),
	}
	if rep.Width*rep.Height == 0 {
		for i, n := range names {
			rep.Channels[i] = ChannelError{Name: n, PSNR: math.Inf(1)}
		}
		rep.PSNR = math.Inf(1)
		return rep, nil
	}

	ap, err := channel.Split(approx, mode)
	if err != nil {
		return Report{}, err
	}
	op, err := channel.Split(original, mode)
	if err != nil {
		return Report{}, err
	}

	var (
		total meanStore
		wg    sync.WaitGroup
	)
	wg.Add(len(names))
	for i := range names {
		go func(i int) {
			defer wg.Done()
			a := ap.Data[i].RawMatrix().Data
			o := op.Data[i].RawMatrix().Data
			diff := make([]float64, len(a))
			floats.SubTo(diff, a, o)

			sq := make([]float64, len(diff))
			floats.MulTo(sq, diff, diff)
			for j, d := range diff {
				diff[j] = math.Abs(d)
			}
			ce := ChannelError{
				Name: names[i],
				MSE:  stat.Mean(sq, nil),
				MAE:  stat.Mean(diff, nil),
			}
			ce.RMSE = math.Sqrt(ce.MSE)
			ce.PSNR = PSNR(ce.MSE)
			rep.Channels[i] = ce
			total.add(floats.Sum(sq), floats.Sum(diff), len(diff))
		}(i)
	}
	wg.Wait()

	rep.MSE, rep.MAE = total.means()
	rep.RMSE = math.Sqrt(rep.MSE)
	rep.PSNR = PSNR(rep.MSE)
	return rep, nil
}
