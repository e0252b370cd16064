package radar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
	"github.com/i474232898/sg-weather/internal/weather/providers"
)

const (
	DefaultURLPrefix = "https://www.weather.gov.sg/files/rainarea/50km/v2/dpsri_70km_"
	urlSuffix        = "0000dBR.dpsri.png"

	// BucketSize is the publishing interval of radar tiles.
	BucketSize = 5 * time.Minute

	DefaultFrames  = 24
	DefaultTimeout = 15 * time.Second

	// DefaultMaxSteps bounds the 404 walk to one hour of buckets when no
	// tile is cached yet.
	DefaultMaxSteps = 12

	// frameDelay is in 100ths of a second; the last frame is held longer.
	frameDelay     = 20
	lastFrameHold  = 10
	tileIDLayout   = "200601021504"
	refererHeader  = "https://www.nea.gov.sg/weather/rain-areas"
	authorityValue = "www.weather.gov.sg"
)

var (
	// ErrNoTile is returned when no tile could be resolved and nothing is cached.
	ErrNoTile = errors.New("no radar tile available")
	// ErrAnimationNotReady is returned until the frame buffer is full.
	ErrAnimationNotReady = errors.New("radar animation not ready")
)

// Options configures a Resolver.
type Options struct {
	URLPrefix string
	// LimitRefetch returns the cached tile while the current bucket is
	// unchanged.
	LimitRefetch bool
	Animate      bool
	Frames       int
	// Width scales animation frames; 0 keeps the tile size.
	Width    int
	Timeout  time.Duration
	MaxSteps int
}

// Frame is a resolved radar tile.
type Frame struct {
	Bucket time.Time
	URL    string
	Image  []byte
}

// Resolver finds the newest published radar tile and, optionally, keeps a
// rolling animation of recent tiles.
type Resolver struct {
	fetcher providers.Fetcher
	opts    Options
	clock   weather.Clock

	mu        sync.Mutex
	last      *Frame
	frames    []*image.Paletted
	animation []byte
}

// NewResolver creates a Resolver. Zero options take their defaults.
func NewResolver(fetcher providers.Fetcher, opts Options, clock weather.Clock) *Resolver {
	if opts.URLPrefix == "" {
		opts.URLPrefix = DefaultURLPrefix
	}
	if opts.Frames <= 0 {
		opts.Frames = DefaultFrames
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{fetcher: fetcher, opts: opts, clock: clock}
}

// Bucket floors t to the tile publishing interval in SGT.
func Bucket(t time.Time) time.Time {
	t = weather.InSGT(t)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%5, 0, 0, weather.SGT)
}

// TileID is the YYYYMMDDHHMM identifier of a bucket.
func TileID(bucket time.Time) string {
	return weather.InSGT(bucket).Format(tileIDLayout)
}

// TileURL returns the image URL for bucket.
func (r *Resolver) TileURL(bucket time.Time) string {
	return r.opts.URLPrefix + TileID(bucket) + urlSuffix
}

// Resolve returns the newest available tile. A 404 means the tile for a
// bucket is not published yet and the previous bucket is tried, until a
// tile is found, the walk reaches the cached bucket or the step limit is hit.
// Any other failure ends the walk. Whenever the walk ends without a new tile
// the cached tile is returned.
func (r *Resolver) Resolve(ctx context.Context) (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := Bucket(r.clock())
	if r.opts.LimitRefetch && r.last != nil && bucket.Equal(r.last.Bucket) {
		log.Debugw("radar tile unchanged within bucket", "tile", TileID(bucket))
		return *r.last, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	for step := 0; step < r.opts.MaxSteps; step++ {
		if step > 0 && r.last != nil && !bucket.After(r.last.Bucket) {
			log.Debugw("radar walk reached cached tile", "tile", TileID(r.last.Bucket))
			return *r.last, nil
		}

		target := r.TileURL(bucket)
		resp, err := r.fetcher.Do(ctx, providers.Request{
			URL:     target,
			Timeout: r.opts.Timeout,
			Headers: map[string]string{
				"authority": authorityValue,
				"referer":   refererHeader,
			},
		})
		if err == nil {
			frame := Frame{Bucket: bucket, URL: target, Image: resp.Body}
			r.last = &frame
			if r.opts.Animate {
				r.addFrame(frame)
			}
			log.Debugw("radar tile resolved", "tile", TileID(bucket), "steps", step)
			return frame, nil
		}
		if weather.StatusCode(err) != 404 {
			log.Warnw("radar tile fetch failed", "tile", TileID(bucket), "error", err)
			return r.cached(err)
		}
		// Stepping back in time, not on the numeric id, crosses the hour
		// boundary directly: 202401011000 is followed by 202401010955.
		bucket = bucket.Add(-BucketSize)
	}

	log.Warnw("radar walk exhausted", "steps", r.opts.MaxSteps)
	return r.cached(fmt.Errorf("%w: no tile in the last %d buckets", ErrNoTile, r.opts.MaxSteps))
}

func (r *Resolver) cached(cause error) (Frame, error) {
	if r.last != nil {
		return *r.last, nil
	}
	if errors.Is(cause, ErrNoTile) {
		return Frame{}, cause
	}
	return Frame{}, fmt.Errorf("%w: %v", ErrNoTile, cause)
}

// Last returns the cached tile.
func (r *Resolver) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Frame{}, false
	}
	return *r.last, true
}

// Animation returns the encoded GIF of the rolling frame buffer.
func (r *Resolver) Animation() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.animation == nil {
		return nil, ErrAnimationNotReady
	}
	return r.animation, nil
}

func (r *Resolver) addFrame(f Frame) {
	img, err := png.Decode(bytes.NewReader(f.Image))
	if err != nil {
		log.Warnw("radar tile is not a png, skipping animation frame", "tile", TileID(f.Bucket), "error", err)
		return
	}

	r.frames = append(r.frames, r.toPaletted(img))
	if len(r.frames) > r.opts.Frames {
		r.frames = r.frames[len(r.frames)-r.opts.Frames:]
	}
	if len(r.frames) < r.opts.Frames {
		return
	}

	anim := &gif.GIF{LoopCount: 0}
	for i, fr := range r.frames {
		delay := frameDelay
		if i == len(r.frames)-1 {
			delay = frameDelay * lastFrameHold
		}
		anim.Image = append(anim.Image, fr)
		anim.Delay = append(anim.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		log.Warnw("radar animation encode failed", "error", err)
		return
	}
	r.animation = buf.Bytes()
}

func (r *Resolver) toPaletted(img image.Image) *image.Paletted {
	bounds := img.Bounds()
	if r.opts.Width > 0 && bounds.Dx() > 0 && r.opts.Width != bounds.Dx() {
		h := bounds.Dy() * r.opts.Width / bounds.Dx()
		scaled := image.NewRGBA(image.Rect(0, 0, r.opts.Width, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
		img, bounds = scaled, scaled.Bounds()
	}
	dst := image.NewPaletted(bounds, palette.Plan9)
	draw.FloydSteinberg.Draw(dst, bounds, img, bounds.Min)
	return dst
}
