package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// UI writes command output, colored when the terminal supports it.
type UI struct {
	Out          io.Writer
	Err          io.Writer
	Output       *termenv.Output
	ErrOutput    *termenv.Output
	ColorEnabled bool
}

func NewUI(out, errOut io.Writer, mode ColorMode) *UI {
	output := termenv.NewOutput(out)
	return &UI{
		Out:          out,
		Err:          errOut,
		Output:       output,
		ErrOutput:    termenv.NewOutput(errOut),
		ColorEnabled: colorEnabled(output, mode),
	}
}

func colorEnabled(output *termenv.Output, mode ColorMode) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return output.ColorProfile() != termenv.Ascii
	}
}

func (u *UI) paint(o *termenv.Output, msg, color string) string {
	if !u.ColorEnabled {
		return msg
	}
	return o.String(msg).Foreground(o.Color(color)).String()
}

func line(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

func (u *UI) Errorf(format string, args ...any) {
	fmt.Fprintln(u.Err, u.paint(u.ErrOutput, line(format, args...), "1"))
}

func (u *UI) Warnf(format string, args ...any) {
	fmt.Fprintln(u.Err, u.paint(u.ErrOutput, line(format, args...), "3"))
}

func (u *UI) Infof(format string, args ...any) {
	fmt.Fprintln(u.Out, u.paint(u.Output, line(format, args...), "4"))
}

func (u *UI) Successf(format string, args ...any) {
	fmt.Fprintln(u.Out, u.paint(u.Output, line(format, args...), "2"))
}

func (u *UI) Printf(format string, args ...any) {
	fmt.Fprintf(u.Out, format, args...)
}

// Score renders a composite score: green from 0.7, yellow from 0.4, red below.
func (u *UI) Score(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	switch {
	case v >= 0.7:
		return u.paint(u.Output, s, "2")
	case v >= 0.4:
		return u.paint(u.Output, s, "3")
	default:
		return u.paint(u.Output, s, "1")
	}
}

// State renders a pipeline state; closed states are red, offers green.
func (u *UI) State(state string) string {
	switch state {
	case "rejected", "withdrawn":
		return u.paint(u.Output, state, "1")
	case "offer_received":
		return u.paint(u.Output, state, "2")
	case "applied", "interview_scheduled", "interview_completed":
		return u.paint(u.Output, state, "4")
	}
	return state
}
