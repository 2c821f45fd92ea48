package graphics

import "math"

// VideoProcessor applies brightness, contrast and saturation adjustments to
// frames before presentation.
type VideoProcessor struct {
	brightness float32
	contrast   float32
	saturation float32
	out        []uint32
}

// NewVideoProcessor creates a video processor; 1.0 leaves a setting neutral
func NewVideoProcessor(brightness, contrast, saturation float32) *VideoProcessor {
	return &VideoProcessor{
		brightness: brightness,
		contrast:   contrast,
		saturation: saturation,
		out:        make([]uint32, FrameWidth*FrameHeight),
	}
}

// IsNeutral reports whether ProcessFrame returns its input unchanged
func (vp *VideoProcessor) IsNeutral() bool {
	return vp.brightness == 1 && vp.contrast == 1 && vp.saturation == 1
}

// ProcessFrame returns the adjusted frame. The result aliases an internal
// buffer reused on the next call, or the input itself when neutral.
func (vp *VideoProcessor) ProcessFrame(frame []uint32) []uint32 {
	if vp.IsNeutral() {
		return frame
	}
	if len(vp.out) != len(frame) {
		vp.out = make([]uint32, len(frame))
	}

	for i, pixel := range frame {
		r := float32(pixel>>16&0xFF) / 255 * vp.brightness
		g := float32(pixel>>8&0xFF) / 255 * vp.brightness
		b := float32(pixel&0xFF) / 255 * vp.brightness

		r = (r-0.5)*vp.contrast + 0.5
		g = (g-0.5)*vp.contrast + 0.5
		b = (b-0.5)*vp.contrast + 0.5

		if vp.saturation != 1 {
			h, s, l := rgbToHSL(clamp(r, 0, 1), clamp(g, 0, 1), clamp(b, 0, 1))
			r, g, b = hslToRGB(h, clamp(s*vp.saturation, 0, 1), l)
		}

		vp.out[i] = uint32(clamp(r, 0, 1)*255)<<16 | uint32(clamp(g, 0, 1)*255)<<8 | uint32(clamp(b, 0, 1)*255)
	}
	return vp.out
}

func clamp(value, lo, hi float32) float32 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func rgbToHSL(r, g, b float32) (h, s, l float32) {
	hi := float32(math.Max(float64(r), math.Max(float64(g), float64(b))))
	lo := float32(math.Min(float64(r), math.Min(float64(g), float64(b))))
	l = (hi + lo) / 2
	if hi == lo {
		return 0, 0, l
	}

	d := hi - lo
	if l > 0.5 {
		s = d / (2 - hi - lo)
	} else {
		s = d / (hi + lo)
	}
	switch hi {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, l
}

func hslToRGB(h, s, l float32) (r, g, b float32) {
	if s == 0 {
		return l, l, l
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return hueToRGB(p, q, h+1.0/3), hueToRGB(p, q, h), hueToRGB(p, q, h-1.0/3)
}

func hueToRGB(p, q, t float32) float32 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
