// internal/tracker/tracker.go
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mcp-food-log/internal/models"
	"mcp-food-log/internal/portions"
)

// Camera asks for permission and captures a photo. A nil photo with a nil
// error means the user cancelled the capture.
type Camera interface {
	RequestPermission(ctx context.Context) (bool, error)
	Capture(ctx context.Context) (*models.Photo, error)
}

// Recognizer proposes the foods visible in a photo, in display order.
type Recognizer interface {
	Recognize(ctx context.Context, photo *models.Photo) ([]models.RecognizedFood, error)
}

// Prompter asks the user how many units of a food were eaten.
type Prompter interface {
	AskQuantity(ctx context.Context, food, unit string) (float64, error)
}

// Fetcher returns per-100g nutrient values for a food, or false when none are available.
type Fetcher interface {
	FetchPer100g(ctx context.Context, food string) (models.NutrientProfile, bool)
}

// Resolver converts a quantity of units into grams.
type Resolver interface {
	Resolve(food, unit string, quantity float64) float64
}

type State string

const (
	AwaitingQuantity State = "awaiting_quantity"
	Fetching         State = "fetching"
	Resolved         State = "resolved"
	Skipped          State = "skipped"
)

// Step is the progress of one recognized food through the pipeline.
// Trail lists every state the step has entered, oldest first.
type Step struct {
	Food     models.RecognizedFood `json:"food"`
	State    State                 `json:"state"`
	Trail    []State               `json:"trail"`
	Quantity float64               `json:"quantity"`
	Grams    float64               `json:"grams"`
	Item     *models.LoggedItem    `json:"item,omitempty"`
	Reason   string                `json:"reason,omitempty"`
}

func newStep(food models.RecognizedFood) Step {
	return Step{Food: food, State: AwaitingQuantity, Trail: []State{AwaitingQuantity}}
}

func (s *Step) enter(state State) {
	s.State = state
	s.Trail = append(s.Trail, state)
}

type CaptureStatus string

const (
	PermissionDenied  CaptureStatus = "permission_denied"
	CaptureCancelled  CaptureStatus = "capture_cancelled"
	RecognitionFailed CaptureStatus = "recognition_failed"
	Processed         CaptureStatus = "processed"
)

// CaptureResult reports what happened to one photo.
type CaptureResult struct {
	Status CaptureStatus `json:"status"`
	Steps  []Step        `json:"steps,omitempty"`
}

// Logged counts the steps that produced an item.
func (r CaptureResult) Logged() int {
	n := 0
	for _, s := range r.Steps {
		if s.State == Resolved {
			n++
		}
	}
	return n
}

type Tracker struct {
	camera     Camera
	recognizer Recognizer
	prompter   Prompter
	fetcher    Fetcher
	resolver   Resolver
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Tracker)

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithCamera(c Camera) Option {
	return func(t *Tracker) { t.camera = c }
}

func WithPrompter(p Prompter) Option {
	return func(t *Tracker) { t.prompter = p }
}

func New(recognizer Recognizer, fetcher Fetcher, resolver Resolver, opts ...Option) *Tracker {
	t := &Tracker{
		recognizer: recognizer,
		fetcher:    fetcher,
		resolver:   resolver,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TakePhoto runs permission, capture and recognition, then logs each
// recognized food in order. Denied permission, a cancelled capture and a
// failed recognition are reported in the result, not as errors. The only
// error returned is the context's.
func (t *Tracker) TakePhoto(ctx context.Context, session *Session) (CaptureResult, error) {
	if t.camera == nil {
		return CaptureResult{}, fmt.Errorf("no camera configured")
	}

	granted, err := t.camera.RequestPermission(ctx)
	if err != nil {
		t.logger.Warn("camera permission request failed", zap.Error(err))
		granted = false
	}
	if !granted {
		t.logger.Info("camera permission denied", zap.String("session", session.ID))
		return CaptureResult{Status: PermissionDenied}, ctx.Err()
	}

	photo, err := t.camera.Capture(ctx)
	if err != nil {
		t.logger.Warn("capture failed", zap.Error(err))
		photo = nil
	}
	if photo == nil {
		t.logger.Info("capture cancelled", zap.String("session", session.ID))
		return CaptureResult{Status: CaptureCancelled}, ctx.Err()
	}

	return t.LogPhoto(ctx, session, photo)
}

// LogPhoto recognizes the foods in an already captured photo and logs them.
func (t *Tracker) LogPhoto(ctx context.Context, session *Session, photo *models.Photo) (CaptureResult, error) {
	session.Photo = photo

	foods, err := t.recognizer.Recognize(ctx, photo)
	if err != nil {
		t.logger.Warn("recognition failed", zap.String("session", session.ID), zap.Error(err))
		return CaptureResult{Status: RecognitionFailed}, ctx.Err()
	}
	t.logger.Debug("foods recognized", zap.String("session", session.ID), zap.Int("count", len(foods)))

	result := CaptureResult{Status: Processed, Steps: make([]Step, 0, len(foods))}
	for _, food := range foods {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		step := t.awaitQuantity(ctx, newStep(food))
		step = t.complete(ctx, session, step)
		result.Steps = append(result.Steps, step)
	}
	return result, nil
}

// AddItem logs quantity units of food without prompting.
func (t *Tracker) AddItem(ctx context.Context, session *Session, food, unit string, quantity float64) Step {
	step := newStep(models.RecognizedFood{Food: food, Unit: unit})
	step.Quantity = quantity
	return t.complete(ctx, session, step)
}

// awaitQuantity asks the prompter. Any prompt failure resolves to the default quantity.
func (t *Tracker) awaitQuantity(ctx context.Context, step Step) Step {
	step.Quantity = portions.DefaultQuantity
	if t.prompter == nil {
		return step
	}
	q, err := t.prompter.AskQuantity(ctx, step.Food.Food, step.Food.Unit)
	if err != nil {
		t.logger.Debug("quantity prompt unanswered, using default",
			zap.String("food", step.Food.Food), zap.Error(err))
		return step
	}
	step.Quantity = q
	return step
}

// complete runs resolve, fetch and scale for a step that has its quantity.
func (t *Tracker) complete(ctx context.Context, session *Session, step Step) Step {
	step.Grams = t.resolver.Resolve(step.Food.Food, step.Food.Unit, step.Quantity)
	step.enter(Fetching)

	profile, ok := t.fetcher.FetchPer100g(ctx, step.Food.Food)
	if !ok {
		step.enter(Skipped)
		step.Reason = "no nutrition data"
		t.logger.Warn("item skipped",
			zap.String("session", session.ID),
			zap.String("food", step.Food.Food),
			zap.String("reason", step.Reason))
		return step
	}

	scaled := Scale(profile, step.Grams)
	item := models.LoggedItem{
		Label:    Label(step.Quantity, step.Food.Unit, step.Food.Food),
		Food:     step.Food.Food,
		Unit:     step.Food.Unit,
		Quantity: step.Quantity,
		Grams:    step.Grams,
		Calories: scaled.Calories,
		Protein:  scaled.Protein,
		Carbs:    scaled.Carbs,
		Fat:      scaled.Fat,
		Fiber:    scaled.Fiber,
		LoggedAt: t.now(),
	}
	session.append(item)

	step.enter(Resolved)
	step.Item = &item
	t.logger.Info("item logged",
		zap.String("session", session.ID),
		zap.String("label", item.Label),
		zap.Float64("grams", item.Grams),
		zap.Float64("calories", item.Calories))
	return step
}

// Label renders "<quantity> <unit> <food>".
func Label(quantity float64, unit, food string) string {
	return fmt.Sprintf("%s %s %s", strconv.FormatFloat(quantity, 'f', -1, 64), unit, food)
}
