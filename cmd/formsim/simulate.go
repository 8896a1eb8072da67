package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/fitcoach/internal/capture"
	"github.com/2beens/fitcoach/internal/catalog"
	"github.com/2beens/fitcoach/internal/formanalysis"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one analysis session against a synthetic camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := simulateOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		_, err = simulate(cmd.Context(), cmd.OutOrStdout(), opts)
		return err
	},
}

func init() {
	simulateCmd.Flags().StringP("exercise", "e", "squat", "exercise id")
	simulateCmd.Flags().DurationP("duration", "d", 30*time.Second, "simulated session length")
	simulateCmd.Flags().Duration("tick", formanalysis.DefaultTickPeriod, "sampling period")
	simulateCmd.Flags().StringP("pattern", "p", "10,200",
		"alternating still,moving spans in frames, starting still; 'always' or 'never' also accepted")
	simulateCmd.Flags().Int("warmup", 3, "frames the camera needs before delivering images")
	simulateCmd.Flags().Bool("deny", false, "simulate a rejected camera permission request")
	simulateCmd.Flags().Bool("motion", false, "print every motion sample")
	simulateCmd.Flags().Bool("json", false, "print events and summary as JSON lines")
}

type simulateOptions struct {
	ExerciseID  string
	Duration    time.Duration
	Tick        time.Duration
	Pattern     capture.MotionPattern
	Warmup      int
	Deny        bool
	PrintMotion bool
	JSON        bool
}

func simulateOptionsFromFlags(cmd *cobra.Command) (simulateOptions, error) {
	flags := cmd.Flags()
	exerciseID, _ := flags.GetString("exercise")
	duration, _ := flags.GetDuration("duration")
	tick, _ := flags.GetDuration("tick")
	patternStr, _ := flags.GetString("pattern")
	warmup, _ := flags.GetInt("warmup")
	deny, _ := flags.GetBool("deny")
	printMotion, _ := flags.GetBool("motion")
	asJSON, _ := flags.GetBool("json")

	if _, ok := catalog.ParseExerciseID(exerciseID); !ok {
		return simulateOptions{}, fmt.Errorf("unknown exercise %q", exerciseID)
	}
	if duration <= 0 || tick <= 0 {
		return simulateOptions{}, fmt.Errorf("duration and tick must be positive")
	}
	pattern, err := parsePattern(patternStr)
	if err != nil {
		return simulateOptions{}, err
	}

	return simulateOptions{
		ExerciseID:  exerciseID,
		Duration:    duration,
		Tick:        tick,
		Pattern:     pattern,
		Warmup:      warmup,
		Deny:        deny,
		PrintMotion: printMotion,
		JSON:        asJSON,
	}, nil
}

func parsePattern(s string) (capture.MotionPattern, error) {
	switch strings.TrimSpace(s) {
	case "always":
		return capture.AlwaysMoving, nil
	case "never", "":
		return capture.NeverMoving, nil
	}

	var spans []int
	for _, part := range strings.Split(s, ",") {
		span, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || span < 0 {
			return nil, fmt.Errorf("invalid pattern span %q", part)
		}
		spans = append(spans, span)
	}
	return capture.Phases(spans...), nil
}

// simulate runs a session on a virtual clock, so a minute long session
// finishes instantly and always produces the same output.
func simulate(ctx context.Context, w io.Writer, opts simulateOptions) (formanalysis.Summary, error) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := formanalysis.NewManualScheduler(start)

	device := &capture.SyntheticDevice{
		Params: capture.SyntheticParams{
			Warmup:  opts.Warmup,
			Pattern: opts.Pattern,
		},
	}
	if opts.Deny {
		device.Err = formanalysis.ErrPermissionDenied
	}

	printer := &eventPrinter{
		w:           w,
		start:       start,
		printMotion: opts.PrintMotion,
		asJSON:      opts.JSON,
	}
	var summary formanalysis.Summary
	session := formanalysis.NewSession(formanalysis.SessionParams{
		ID:         uuid.NewString(),
		UserID:     "formsim",
		Device:     device,
		Catalog:    catalog.New(),
		Scheduler:  sched,
		Listener:   printer,
		TickPeriod: opts.Tick,
		OnEnd: func(s formanalysis.Summary) {
			summary = s
		},
	})

	if err := session.Start(ctx, opts.ExerciseID); err != nil {
		printer.summary(summary)
		return summary, err
	}

	for sched.Elapsed() < opts.Duration {
		if err := ctx.Err(); err != nil {
			break
		}
		sched.Advance(opts.Tick)
	}
	session.Stop()

	printer.summary(summary)
	return summary, printer.err
}

type eventPrinter struct {
	w           io.Writer
	start       time.Time
	printMotion bool
	asJSON      bool
	err         error
}

func (p *eventPrinter) OnEvent(event formanalysis.Event) {
	if event.Type == formanalysis.EventTypeMotion && !p.printMotion {
		return
	}
	if p.asJSON {
		p.writeJSON(event)
		return
	}

	at := event.Timestamp.Sub(p.start)
	switch event.Type {
	case formanalysis.EventTypeStateChanged:
		p.printf("[%8s] state -> %s\n", at, *event.State)
	case formanalysis.EventTypeMotion:
		p.printf("[%8s] motion %5.1f (raw %.2f%%)\n", at, event.Motion.Sample, event.Motion.Raw)
	case formanalysis.EventTypeFeedback:
		p.printf("[%8s] feedback %d: %s\n", at, len(event.Feedback), event.Feedback[len(event.Feedback)-1])
	case formanalysis.EventTypeNotification:
		p.printf("[%8s] %s: %s\n", at, event.Notification.Title, event.Notification.Description)
	case formanalysis.EventTypeStopped:
		p.printf("[%8s] stopped (%s)\n", at, event.EndReason)
	}
}

func (p *eventPrinter) summary(s formanalysis.Summary) {
	if p.asJSON {
		p.writeJSON(s)
		return
	}
	p.printf("\nexercise %s, %s, end: %s\n", s.ExerciseID, s.Duration, s.EndReason)
	p.printf("ticks %d (%d without frame), activations %d, feedback revealed %d\n",
		s.Ticks, s.CaptureMisses, s.Activations, s.FeedbackRevealed)
	p.printf("motion mean %.2f%%, std dev %.2f\n", s.MeanMotion, s.MotionStdDev)
}

func (p *eventPrinter) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.err = err
		return
	}
	p.printf("%s\n", data)
}

func (p *eventPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
