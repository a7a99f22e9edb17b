package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/formsync/internal/form"
	"github.com/roach88/formsync/internal/formsync"
	"github.com/roach88/formsync/internal/idle"
)

// DefaultIdleTimeout is the inactivity limit per page.
const DefaultIdleTimeout = 10 * time.Minute

// Submitter accepts one page of answers.
// Implemented by *formsync.Synchronizer.
type Submitter interface {
	SubmitPage(ctx context.Context, group string, values form.Values) (string, error)
}

// Store is the local state the controller reads and resets.
// Implemented by *store.Store.
type Store interface {
	Group(ctx context.Context, name string) (form.Values, bool, error)
	Reset(ctx context.Context) error
}

// Result summarizes a completed run.
type Result struct {
	// FormID is the last confirmed remote identifier. Empty when no page
	// ever synchronized.
	FormID string

	// Unsynced lists the pages whose last submission saved locally but
	// did not reach the remote.
	Unsynced []string

	// Restarts counts idle restarts.
	Restarts int
}

// Controller runs a questionnaire page by page.
type Controller struct {
	def      *Definition
	prompter Prompter
	submit   Submitter
	store    Store
	validate Validator
	timeout  time.Duration
	monitor  *idle.Monitor

	mu    sync.Mutex
	fired *idle.Event
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithValidator replaces RequiredValidator.
func WithValidator(v Validator) ControllerOption {
	return func(c *Controller) {
		c.validate = v
	}
}

// WithIdleTimeout sets the per-page inactivity limit.
// Default: DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithClock sets the idle monitor clock (for testing).
func WithClock(clock idle.Clock) ControllerOption {
	return func(c *Controller) {
		c.monitor = idle.NewMonitor(clock, c.onIdle)
	}
}

// NewController wires a questionnaire to its prompter, synchronizer and store.
func NewController(def *Definition, p Prompter, submit Submitter, st Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		def:      def,
		prompter: p,
		submit:   submit,
		store:    st,
		validate: RequiredValidator,
		timeout:  DefaultIdleTimeout,
	}
	c.monitor = idle.NewMonitor(nil, c.onIdle)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Monitor exposes the idle monitor.
func (c *Controller) Monitor() *idle.Monitor {
	return c.monitor
}

func (c *Controller) onIdle(ev idle.Event) {
	c.mu.Lock()
	c.fired = &ev
	c.mu.Unlock()
}

func (c *Controller) takeFired() (idle.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired == nil {
		return idle.Event{}, false
	}
	ev := *c.fired
	c.fired = nil
	return ev, true
}

type pageOutcome int

const (
	outcomeNext pageOutcome = iota
	outcomeRestart
)

// errRestart unwinds a page when the user chose to restart after an
// idle timeout.
var errRestart = errors.New("restart requested")

// Run asks every page in order. Each page is armed for inactivity while
// it is shown and disarmed when the user leaves it.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	var res Result
	unsynced := make(map[string]bool)

	for i := 0; i < len(c.def.Pages); {
		page := c.def.Pages[i]

		if err := c.monitor.Start(c.timeout); err != nil {
			return res, fmt.Errorf("page %q: %w", page.Group, err)
		}
		outcome, id, err := c.runPage(ctx, page)
		c.monitor.Stop()
		c.takeFired()

		var se *formsync.SyncError
		switch {
		case errors.As(err, &se):
			unsynced[page.Group] = true
		case err != nil:
			return res, err
		}

		if outcome == outcomeRestart {
			if err := c.store.Reset(ctx); err != nil {
				return res, fmt.Errorf("restart: %w", err)
			}
			slog.Info("questionnaire restarted after idle timeout")
			res = Result{Restarts: res.Restarts + 1}
			clear(unsynced)
			i = 0
			continue
		}

		if id != "" {
			res.FormID = id
			// A successful sync carries every earlier page with it.
			clear(unsynced)
		}
		i++
	}

	for _, g := range c.def.Groups() {
		if unsynced[g] {
			res.Unsynced = append(res.Unsynced, g)
		}
	}
	return res, nil
}

// runPage asks, validates and submits one page. A *formsync.SyncError is
// returned together with outcomeNext: the page was saved and the flow
// advances.
func (c *Controller) runPage(ctx context.Context, page Page) (pageOutcome, string, error) {
	prefill, _, err := c.store.Group(ctx, page.Group)
	if err != nil {
		return outcomeNext, "", fmt.Errorf("page %q: %w", page.Group, err)
	}

	if page.Title != "" {
		if err := c.prompter.Info(ctx, page.Title); err != nil {
			return outcomeNext, "", err
		}
	}

	for {
		values, err := c.askPage(ctx, page, prefill)
		if errors.Is(err, errRestart) {
			return outcomeRestart, "", nil
		}
		if err != nil {
			return outcomeNext, "", err
		}

		if err := c.validate(page, values); err != nil {
			if infoErr := c.prompter.Info(ctx, err.Error()); infoErr != nil {
				return outcomeNext, "", infoErr
			}
			prefill = values
			continue
		}

		return c.submitPage(ctx, page, values)
	}
}

// submitPage hands the page to the synchronizer, offering a retry while
// the local save fails.
func (c *Controller) submitPage(ctx context.Context, page Page, values form.Values) (pageOutcome, string, error) {
	for {
		id, err := c.submit.SubmitPage(ctx, page.Group, values)
		switch {
		case err == nil:
			return outcomeNext, id, nil

		case formsync.IsStorageWriteError(err):
			slog.Error("page not saved", "group", page.Group, "error", err)
			retry, perr := c.prompter.Confirm(ctx, ConfirmConfig{
				Message: "Your answers could not be saved on this device. Try again?",
				Default: true,
			})
			if perr != nil {
				return outcomeNext, "", perr
			}
			if !retry {
				return outcomeNext, "", err
			}

		case formsync.IsSyncError(err):
			if perr := c.prompter.Info(ctx, "Saved on this device. It will be sent with the next page."); perr != nil {
				return outcomeNext, "", perr
			}
			return outcomeNext, "", err

		default:
			return outcomeNext, "", err
		}
	}
}

// askPage asks every applicable field of page, checking for an idle
// fire after each answer.
func (c *Controller) askPage(ctx context.Context, page Page, prefill form.Values) (form.Values, error) {
	values := make(form.Values, len(page.Fields))
	for _, f := range page.Fields {
		if !applies(f, values) {
			continue
		}
		if err := c.askField(ctx, f, prefill, values); err != nil {
			return nil, err
		}
		if err := c.checkIdle(ctx); err != nil {
			return nil, err
		}
		c.monitor.Activity()
	}
	if err := c.checkIdle(ctx); err != nil {
		return nil, err
	}
	return values, nil
}

// checkIdle shows the continue-or-restart prompt when the monitor fired.
// It returns errRestart when the user chose to restart.
func (c *Controller) checkIdle(ctx context.Context) error {
	ev, fired := c.takeFired()
	if !fired {
		return nil
	}

	slog.Info("idle prompt", "idle", ev.Idle())
	cont, err := c.prompter.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("No activity for %s. Continue this questionnaire? (no starts over)", ev.Idle().Round(time.Second)),
		Default: true,
	})
	if err != nil {
		return err
	}
	if !cont {
		return errRestart
	}
	c.monitor.Continue()
	return nil
}

func (c *Controller) askField(ctx context.Context, f Field, prefill, values form.Values) error {
	label := f.Label
	if label == "" {
		label = f.Name
	}

	switch f.Kind {
	case KindBool:
		def, _ := prefill[f.Name].(form.Bool)
		ans, err := c.prompter.Confirm(ctx, ConfirmConfig{Message: label, Default: bool(def), Help: f.Help})
		if err != nil {
			return err
		}
		values[f.Name] = form.Bool(ans)

	case KindInt:
		def := ""
		if n, ok := prefill[f.Name].(form.Int); ok {
			def = strconv.FormatInt(int64(n), 10)
		}
		ans, err := c.prompter.Input(ctx, InputConfig{
			Message:   label,
			Default:   def,
			Help:      f.Help,
			Validator: validInt,
		})
		if err != nil {
			return err
		}
		ans = strings.TrimSpace(ans)
		if ans == "" {
			values[f.Name] = form.Null{}
			return nil
		}
		n, err := strconv.ParseInt(ans, 10, 64)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		values[f.Name] = form.Int(n)

	case KindChoice:
		def := 0
		if s := prefill.StringOf(f.Name); s != "" {
			for i, o := range f.Options {
				if o == s {
					def = i
				}
			}
		}
		idx, err := c.prompter.Select(ctx, SelectConfig{Message: label, Options: f.Options, DefaultIndex: def, Help: f.Help})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(f.Options) {
			return fmt.Errorf("field %q: choice %d out of range", f.Name, idx)
		}
		values[f.Name] = form.String(f.Options[idx])

	case KindEntity:
		return c.askEntity(ctx, f, label, prefill, values)

	default:
		ans, err := c.prompter.Input(ctx, InputConfig{Message: label, Default: prefill.StringOf(f.Name), Help: f.Help})
		if err != nil {
			return err
		}
		values[f.Name] = form.String(strings.TrimSpace(ans))
	}
	return nil
}

// askEntity reads free text and resolves it against the field's catalog.
// The catalog id goes to f.Name and the label to f.NameField. Without a
// match f.Name gets the none sentinel and f.NameField keeps the typed text.
func (c *Controller) askEntity(ctx context.Context, f Field, label string, prefill, values form.Values) error {
	cat, ok := c.def.Catalog(f.Catalog)
	if !ok {
		return fmt.Errorf("field %q: catalog %q is not loaded", f.Name, f.Catalog)
	}

	ans, err := c.prompter.Input(ctx, InputConfig{Message: label, Default: prefill.StringOf(f.NameField), Help: f.Help})
	if err != nil {
		return err
	}

	res := cat.Match(ans)
	values[f.Name] = form.String(res.ID())
	values[f.NameField] = form.String(res.Name())

	if strings.TrimSpace(ans) == "" {
		return nil
	}
	msg := fmt.Sprintf("No match in %s; %q will be recorded as typed.", cat.Name, res.Raw)
	if res.Matched {
		msg = fmt.Sprintf("Matched %s (%s).", res.Entity.Label, res.Entity.ID)
	}
	return c.prompter.Info(ctx, msg)
}

func validInt(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return fmt.Errorf("enter a whole number")
	}
	return nil
}
