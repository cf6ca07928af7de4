package vision

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ImageNet normalization (standard for torchvision models).
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	InputWidth    = 224
	InputHeight   = 224
	InputChannels = 3

	contrastFactor   = 1.2
	brightnessFactor = 1.05
)

// InputShape is the NHWC shape of every tensor Preprocess produces.
var InputShape = []int64{1, InputHeight, InputWidth, InputChannels}

// Tensor is a flattened NHWC float32 volume of shape InputShape.
type Tensor []float32

// At returns the value at (y, x, c) of the single batch entry.
func (t Tensor) At(y, x, c int) float32 {
	return t[(y*InputWidth+x)*InputChannels+c]
}

// Preprocess converts img into the tensor the model was trained on: RGB, contrast 1.2,
// brightness 1.05, stretched to 224x224, scaled to [0,1] and ImageNet-normalized.
func Preprocess(img image.Image) Tensor {
	rgb := imaging.Clone(img)
	enhanced := enhance(rgb)

	// Stretch, not crop: the aspect ratio is not preserved.
	dst := image.NewRGBA(image.Rect(0, 0, InputWidth, InputHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), enhanced, enhanced.Bounds(), draw.Src, nil)

	out := make(Tensor, InputHeight*InputWidth*InputChannels)
	for y := 0; y < InputHeight; y++ {
		for x := 0; x < InputWidth; x++ {
			c := dst.RGBAAt(x, y)
			idx := (y*InputWidth + x) * InputChannels
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			out[idx+0] = (r - imagenetMean[0]) / imagenetStd[0]
			out[idx+1] = (g - imagenetMean[1]) / imagenetStd[1]
			out[idx+2] = (b - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}

// enhance applies the fixed contrast (pivot at mid-gray) and then the brightness multiplier.
// Alpha is flattened to opaque so transparent pixels do not vanish during resampling.
func enhance(img *image.NRGBA) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: enhanceChannel(c.R),
			G: enhanceChannel(c.G),
			B: enhanceChannel(c.B),
			A: 255,
		}
	})
}

func enhanceChannel(v uint8) uint8 {
	f := (float64(v)-127.5)*contrastFactor + 127.5
	f *= brightnessFactor
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}

// Rotate90 is the fixed retry transform applied when the first pass is not confident.
func Rotate90(img image.Image) image.Image {
	return imaging.Rotate90(img)
}
