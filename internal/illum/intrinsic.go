package illum

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/stat"

	"github.com/prasannaganesan/interior-design-app/internal/colorspace"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// Fields holds the per-pixel output of a learned intrinsic decomposition:
// linear reflectance, a scalar shading multiplier and an additive specular
// term, satisfying original ≈ reflectance*shading + specular per channel.
type Fields struct {
	Width  int
	Height int
	// Reflectance and Specular are 3 floats per pixel (RGB); Shading is 1.
	Reflectance []float64
	Shading     []float64
	Specular    []float64
}

// Intrinsic recolors using a learned decomposition. Compared to the
// Retinex default it trades generality for more accurate highlight
// preservation, since speculars are modeled additively instead of being
// folded into the shade field.
type Intrinsic struct {
	fields Fields
}

// NewIntrinsic wraps precomputed decomposition fields as a Strategy.
func NewIntrinsic(fields Fields) (*Intrinsic, error) {
	n := fields.Width * fields.Height
	if len(fields.Reflectance) != 3*n || len(fields.Shading) != n || len(fields.Specular) != 3*n {
		return nil, fmt.Errorf("decomposition field sizes do not match %dx%d image",
			fields.Width, fields.Height)
	}
	return &Intrinsic{fields: fields}, nil
}

// Recolor maps the mask's mean reflectance exactly onto the target linear
// color with a per-channel gain, then recombines reflectance*shading +
// specular for each masked pixel.
func (in *Intrinsic) Recolor(dst *raster.Image, px mask.Pixels, targetHex string) error {
	f := &in.fields
	if dst.Width != f.Width || dst.Height != f.Height {
		return fmt.Errorf("image %dx%d does not match decomposition %dx%d",
			dst.Width, dst.Height, f.Width, f.Height)
	}
	if len(px) == 0 {
		return nil
	}

	tr, tg, tb, err := colorspace.HexToLinear(targetHex)
	if err != nil {
		return err
	}
	target := [3]float64{tr, tg, tb}

	n := f.Width * f.Height
	channelVals := [3][]float64{}
	for c := 0; c < 3; c++ {
		channelVals[c] = make([]float64, 0, len(px))
	}
	for _, i := range px {
		if i < 0 || i >= n {
			continue
		}
		for c := 0; c < 3; c++ {
			channelVals[c] = append(channelVals[c], f.Reflectance[i*3+c])
		}
	}
	if len(channelVals[0]) == 0 {
		return nil
	}

	var gain [3]float64
	for c := 0; c < 3; c++ {
		mean := stat.Mean(channelVals[c], nil)
		// Zero mean reflectance (fully black region): unit gain instead
		// of a NaN-producing division.
		if mean > 0 {
			gain[c] = target[c] / mean
		} else {
			gain[c] = 1
		}
	}

	for _, i := range px {
		if i < 0 || i >= n {
			continue
		}
		shading := f.Shading[i]
		for c := 0; c < 3; c++ {
			ref := f.Reflectance[i*3+c] * gain[c]
			v := ref*shading + f.Specular[i*3+c]
			dst.Pix[i*4+c] = colorspace.LinearToSrgb(v)
		}
	}
	return nil
}

// Decompose runs the intrinsic decomposition network once over the whole
// image and returns its fields. The network takes a linear RGB tensor
// [1,3,H,W] and emits reflectance [1,3,H,W], shading [1,1,H,W] and
// specular [1,3,H,W].
func Decompose(ctx context.Context, img *raster.Image, modelPath string) (Fields, error) {
	if err := ctx.Err(); err != nil {
		return Fields{}, err
	}

	w, h := img.Width, img.Height
	n := w * h

	input := make([]float32, 3*n)
	for i := 0; i < n; i++ {
		input[0*n+i] = float32(colorspace.SrgbToLinear(img.Pix[i*4]))
		input[1*n+i] = float32(colorspace.SrgbToLinear(img.Pix[i*4+1]))
		input[2*n+i] = float32(colorspace.SrgbToLinear(img.Pix[i*4+2]))
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"image"},
		[]string{"reflectance", "shading", "specular"},
		nil,
	)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: failed to create session: %w", err)
	}
	defer session.Destroy()

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), input)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	reflOut := make([]float32, 3*n)
	reflTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), reflOut)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: failed to create reflectance tensor: %w", err)
	}
	defer reflTensor.Destroy()

	shadeOut := make([]float32, n)
	shadeTensor, err := ort.NewTensor(ort.NewShape(1, 1, int64(h), int64(w)), shadeOut)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: failed to create shading tensor: %w", err)
	}
	defer shadeTensor.Destroy()

	specOut := make([]float32, 3*n)
	specTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), specOut)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: failed to create specular tensor: %w", err)
	}
	defer specTensor.Destroy()

	err = session.Run(
		[]ort.Value{inputTensor},
		[]ort.Value{reflTensor, shadeTensor, specTensor},
	)
	if err != nil {
		return Fields{}, fmt.Errorf("decomposition: inference failed: %w", err)
	}

	fields := Fields{
		Width:       w,
		Height:      h,
		Reflectance: make([]float64, 3*n),
		Shading:     make([]float64, n),
		Specular:    make([]float64, 3*n),
	}
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			fields.Reflectance[i*3+c] = float64(reflOut[c*n+i])
			fields.Specular[i*3+c] = float64(specOut[c*n+i])
		}
		fields.Shading[i] = float64(shadeOut[i])
	}
	return fields, nil
}
