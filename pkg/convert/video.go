package convert

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// ConvertVideo converts a raw picture to packed RGB24, scaled to the
// configured size.
func (c *Converter) ConvertVideo(raw *ports.RawVideo) (media.VideoFrame, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return media.VideoFrame{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, raw.Width, raw.Height)
	}

	pix, err := toRGB24(raw)
	if err != nil {
		return media.VideoFrame{}, err
	}

	w, h := c.TargetSize(raw.Width, raw.Height)
	if w != raw.Width || h != raw.Height {
		pix = scaleRGB24(pix, raw.Width, raw.Height, w, h)
	}

	return media.VideoFrame{
		Width:     w,
		Height:    h,
		Timestamp: raw.Timestamp(),
		Pixels:    pix,
	}, nil
}

func toRGB24(raw *ports.RawVideo) ([]byte, error) {
	w, h := raw.Width, raw.Height
	out := make([]byte, w*h*media.BytesPerPixel)

	switch raw.Format {
	case ports.PixelFormatYUV420P:
		cw, ch := (w+1)/2, (h+1)/2
		yp, ys, err := plane(raw, 0, w, h)
		if err != nil {
			return nil, err
		}
		up, us, err := plane(raw, 1, cw, ch)
		if err != nil {
			return nil, err
		}
		vp, vs, err := plane(raw, 2, cw, ch)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			row := out[y*w*3:]
			for x := 0; x < w; x++ {
				putYUV(row[x*3:], yp[y*ys+x], up[(y/2)*us+x/2], vp[(y/2)*vs+x/2])
			}
		}

	case ports.PixelFormatNV12:
		cw, ch := (w+1)/2, (h+1)/2
		yp, ys, err := plane(raw, 0, w, h)
		if err != nil {
			return nil, err
		}
		uv, uvs, err := plane(raw, 1, cw*2, ch)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			row := out[y*w*3:]
			for x := 0; x < w; x++ {
				i := (y/2)*uvs + (x/2)*2
				putYUV(row[x*3:], yp[y*ys+x], uv[i], uv[i+1])
			}
		}

	case ports.PixelFormatRGB24:
		p, s, err := plane(raw, 0, w*3, h)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			copy(out[y*w*3:(y+1)*w*3], p[y*s:])
		}

	case ports.PixelFormatRGBA:
		p, s, err := plane(raw, 0, w*4, h)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			src := p[y*s:]
			dst := out[y*w*3:]
			for x := 0; x < w; x++ {
				dst[x*3] = src[x*4]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		}

	default:
		return nil, fmt.Errorf("%w: pixel format %s", ErrUnsupportedFormat, raw.Format)
	}

	return out, nil
}

// plane returns plane i and its stride after checking it holds rows rows of
// rowBytes bytes. A missing or zero stride means the rows are tightly packed.
func plane(raw *ports.RawVideo, i, rowBytes, rows int) ([]byte, int, error) {
	if i >= len(raw.Planes) {
		return nil, 0, fmt.Errorf("%w: missing plane %d", ErrShortBuffer, i)
	}
	stride := rowBytes
	if i < len(raw.Strides) && raw.Strides[i] > 0 {
		stride = raw.Strides[i]
	}
	if stride < rowBytes {
		return nil, 0, fmt.Errorf("%w: plane %d stride %d < %d", ErrShortBuffer, i, stride, rowBytes)
	}
	p := raw.Planes[i]
	if need := (rows-1)*stride + rowBytes; len(p) < need {
		return nil, 0, fmt.Errorf("%w: plane %d has %d bytes, need %d", ErrShortBuffer, i, len(p), need)
	}
	return p, stride, nil
}

// putYUV writes one BT.601 limited-range pixel.
func putYUV(dst []byte, y, u, v byte) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128

	dst[0] = clamp((298*c + 409*e + 128) >> 8)
	dst[1] = clamp((298*c - 100*d - 208*e + 128) >> 8)
	dst[2] = clamp((298*c + 516*d + 128) >> 8)
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// scaleRGB24 resamples a packed RGB24 picture with bilinear filtering.
func scaleRGB24(pix []byte, w, h, dw, dh int) []byte {
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		src.Pix[j] = pix[i]
		src.Pix[j+1] = pix[i+1]
		src.Pix[j+2] = pix[i+2]
		src.Pix[j+3] = 255
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]byte, dw*dh*media.BytesPerPixel)
	for i, j := 0, 0; i < len(out); i, j = i+3, j+4 {
		out[i] = dst.Pix[j]
		out[i+1] = dst.Pix[j+1]
		out[i+2] = dst.Pix[j+2]
	}
	return out
}
