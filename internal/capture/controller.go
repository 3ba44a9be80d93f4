package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/classify"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/frame"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/gallery"
	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

const DefaultCooldown = time.Second

var NotRunning = errors.New("controller is not running")

type Config struct {
	Source    Source
	Converter Converter
	Saver     Saver

	// Classifier and Locator are optional. Without a classifier every prediction is empty;
	// without a locator no location is looked up.
	Classifier Classifier
	Locator    Locator

	// Cooldown is the minimum time between two accepted shutter presses.
	Cooldown time.Duration

	// OnChange is called on the controller goroutine after every change. It must not block for
	// long or call back into the controller synchronously.
	OnChange func(Snapshot)

	Now func() time.Time
}

// Controller owns the current photo and decides which user actions and background results apply
// to it. All state is touched only by the goroutine in Run.
type Controller struct {
	cfg    Config
	events chan func(*session)
	done   chan struct{}

	runOnce sync.Once
}

// session is the loop-owned state.
type session struct {
	ctx context.Context
	wg  sync.WaitGroup

	state       State
	generation  uint64
	lastShutter time.Time

	captureID uuid.UUID
	image     *frame.SquareImage
	preview   image.Image

	predictions []classify.Label
	classified  bool

	location        string
	locationPending bool
	locationKnown   bool

	notice    string
	savedPath string
}

func NewController(cfg Config) *Controller {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		cfg:    cfg,
		events: make(chan func(*session), 16),
		done:   make(chan struct{}),
	}
}

// Run processes events until ctx is done. Background work is canceled and waited for before it
// returns. Run may be called only once.
func (c *Controller) Run(ctx context.Context) error {
	err := NotRunning
	c.runOnce.Do(func() {
		err = c.run(ctx)
	})
	return err
}

func (c *Controller) run(ctx context.Context) error {
	logger := logging.For("capture")

	workCtx, cancel := context.WithCancel(ctx)
	s := &session{ctx: workCtx}

	defer func() {
		cancel()
		close(c.done)
		s.wg.Wait()
		// Results that were queued before the loop stopped may still hold images.
		for drained := false; !drained; {
			select {
			case ev := <-c.events:
				ev(s)
			default:
				drained = true
			}
		}
		s.discardImage()
		logger.Debug("Controller stopped")
	}()

	c.publish(s)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-c.events:
			ev(s)
		}
	}
}

// post hands ev to the loop. It returns false when the loop has stopped.
func (c *Controller) post(ev func(*session)) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Snapshot returns the current state as seen after every event posted before it.
func (c *Controller) Snapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !c.post(func(s *session) { reply <- c.snapshot(s) }) {
		return Snapshot{}, NotRunning
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-c.done:
		return Snapshot{}, NotRunning
	}
}

// Shutter captures a new photo. It is ignored unless the controller is idle and the last accepted
// press is at least Cooldown ago.
func (c *Controller) Shutter() {
	c.post(func(s *session) {
		logger := logging.For("capture")

		if s.state != Idle {
			logger.WithField("state", s.state).Debug("Shutter ignored")
			return
		}
		now := c.cfg.Now()
		if !s.lastShutter.IsZero() && now.Sub(s.lastShutter) < c.cfg.Cooldown {
			logger.Debug("Shutter ignored during cooldown")
			return
		}
		s.lastShutter = now

		s.generation++
		s.state = Capturing
		c.startCapture(s, s.generation)
		c.publish(s)
	})
}

// Retake drops the current photo and anything still being computed for it.
func (c *Controller) Retake() {
	c.post(func(s *session) {
		if s.state == Idle {
			return
		}
		s.generation++
		s.discardImage()
		s.state = Idle
		c.publish(s)
	})
}

// Predict classifies the current photo.
func (c *Controller) Predict() {
	c.post(func(s *session) {
		if s.state != Captured && s.state != Result {
			logging.For("capture").WithField("state", s.state).Debug("Predict ignored")
			return
		}
		s.state = Classifying
		c.startClassify(s, s.generation, s.image.Clone())
		c.publish(s)
	})
}

// Save writes the current photo to the gallery. withPrediction burns in the labels when there
// are any; the location is burned in whenever it is known.
func (c *Controller) Save(withPrediction bool) {
	c.post(func(s *session) {
		if s.state != Captured && s.state != Result {
			logging.For("capture").WithField("state", s.state).Debug("Save ignored")
			return
		}

		var labels []string
		if withPrediction && len(s.predictions) > 0 {
			labels = classify.Strings(s.predictions)
		}
		var location string
		if s.locationKnown {
			location = s.location
		}

		c.startSave(s, s.image.Clone(), labels, location)
	})
}

// The start* helpers do nothing once the loop is stopping.

func (c *Controller) startCapture(s *session, gen uint64) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		img, err := c.captureAndConvert(s.ctx)
		if !c.post(func(s *session) { c.captured(s, gen, img, err) }) {
			img.Close()
		}
	}()
}

func (c *Controller) captureAndConvert(ctx context.Context) (*frame.SquareImage, error) {
	raw, err := c.cfg.Source.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "capture failed")
	}
	img, err := c.cfg.Converter.Convert(raw)
	if err != nil {
		return nil, errors.Wrap(err, "conversion failed")
	}
	return img, nil
}

func (c *Controller) captured(s *session, gen uint64, img *frame.SquareImage, err error) {
	logger := logging.For("capture")

	if gen != s.generation || s.state != Capturing {
		img.Close()
		return
	}

	if err != nil {
		logger.WithError(err).Error("Failed to capture image")
		s.state = Idle
		s.notice = NoticeCaptureFailed
		c.publish(s)
		return
	}

	preview, err := img.ToImage()
	if err != nil {
		logger.WithError(err).Warn("No preview for captured image")
	}

	s.state = Captured
	s.captureID = uuid.New()
	s.image = img
	s.preview = preview
	s.predictions = nil
	s.classified = false
	logger.WithFields(logrus.Fields{
		"capture": s.captureID,
		"side":    img.Side(),
	}).Info("Image captured")

	if c.cfg.Locator != nil {
		s.location = LocationFetching
		s.locationPending = true
		c.startLocate(s, gen)
	}
	c.publish(s)
}

func (c *Controller) startLocate(s *session, gen uint64) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		desc, err := c.cfg.Locator.Describe(s.ctx)
		c.post(func(s *session) { c.located(s, gen, desc, err) })
	}()
}

func (c *Controller) located(s *session, gen uint64, desc string, err error) {
	if gen != s.generation {
		return
	}

	s.locationPending = false
	if err != nil {
		logging.For("capture").WithError(err).Warn("Failed to get location")
		s.location = LocationFailed
		s.locationKnown = false
	} else {
		s.location = desc
		s.locationKnown = true
	}
	c.publish(s)
}

func (c *Controller) startClassify(s *session, gen uint64, img *frame.SquareImage) {
	if s.ctx.Err() != nil {
		img.Close()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer img.Close()

		var (
			labels []classify.Label
			err    error
		)
		if c.cfg.Classifier != nil {
			labels, err = c.cfg.Classifier.Classify(s.ctx, img)
		}
		c.post(func(s *session) { c.classified(s, gen, labels, err) })
	}()
}

func (c *Controller) classified(s *session, gen uint64, labels []classify.Label, err error) {
	if gen != s.generation || s.state != Classifying {
		return
	}

	if err != nil {
		logging.For("capture").WithError(err).Error("Classification failed")
		labels = nil
	}
	s.state = Result
	s.predictions = labels
	s.classified = true
	c.publish(s)
}

func (c *Controller) startSave(s *session, img *frame.SquareImage, labels []string, location string) {
	if s.ctx.Err() != nil {
		img.Close()
		return
	}
	entry := gallery.Entry{
		CaptureID: s.captureID,
		Labels:    labels,
		Location:  location,
	}
	prefix, notice := gallery.PrefixPlain, NoticeSaved
	if len(labels) > 0 {
		prefix, notice = gallery.PrefixWithPrediction, NoticeSavedWithLabels
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		out := gallery.Overlay(img.Mat(), gallery.OverlayText(labels, location))
		img.Close()
		saved, err := c.cfg.Saver.Save(s.ctx, out, prefix, entry)
		out.Close()

		c.post(func(s *session) {
			if err != nil {
				logging.For("capture").WithError(err).Error("Failed to save image")
				s.notice = NoticeSaveFailed
			} else {
				s.notice = notice
				s.savedPath = saved.Path
			}
			c.publish(s)
		})
	}()
}

// discardImage forgets the current photo and everything derived from it.
func (s *session) discardImage() {
	s.image.Close()
	s.image = nil
	s.preview = nil
	s.captureID = uuid.Nil
	s.predictions = nil
	s.classified = false
	s.location = ""
	s.locationPending = false
	s.locationKnown = false
	s.savedPath = ""
}

func (c *Controller) snapshot(s *session) Snapshot {
	snap := Snapshot{
		State:           s.state,
		CaptureID:       s.captureID,
		Preview:         s.preview,
		Location:        s.location,
		LocationPending: s.locationPending,
		LocationKnown:   s.locationKnown,
		Notice:          s.notice,
		SavedPath:       s.savedPath,
	}
	if s.classified {
		snap.Labels = classify.Strings(s.predictions)
	}
	return snap
}

func (c *Controller) publish(s *session) {
	snap := c.snapshot(s)
	s.notice = ""
	if c.cfg.OnChange != nil && s.ctx.Err() == nil {
		c.cfg.OnChange(snap)
	}
}
