package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
	"pmcopilot/internal/viewport"
)

const sessionPrompt = "pmcopilot> "

const sessionHelp = `Commands:
  steps                          show the canvas
  select <id>                    open a step in the side panel
  close                          close the side panel
  show                           show the open step
  set <field> <value>            set a text field
  add <field> <value>            append to a list field
  remove <field> <index>         remove a list entry
  status <status>                not-started, in-progress or complete
  run [--wait]                   analyze the open step
  wait                           wait for every running analysis
  cancel                         cancel the open step's analysis
  request                        show the open step's analysis state
  zoom in|out|reset              change the canvas zoom
  key down|up <code>             keyboard event, e.g. key down Space
  pointer down <button> <target> <x> <y>
  pointer move <x> <y>
  pointer up | pointer leave
  wheel <dx> <dy> [ctrl|meta]    scroll, or zoom with a modifier
  view                           show the viewport
  blur                           the window lost focus
  help                           show this help
  quit                           leave the session
Quote values with spaces: set problem "Onboarding takes a week"`

var errNoStepOpen = errors.New("no step selected, use: select <id>")

func newSessionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Interactive editor session",
		Long: `Read editor commands from stdin, one per line. Type "help" for the
command list. A prompt is shown only when stdin is a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			s := &shell{app: app, interactive: isTerminal(in)}
			return s.run(cmd.Context(), in)
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// shell executes session commands against an [App].
type shell struct {
	app         *App
	interactive bool
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	out := s.app.Printer.Writer()
	scanner := bufio.NewScanner(in)
	for {
		if s.interactive {
			fmt.Fprint(out, sessionPrompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		args, err := shellwords.Parse(scanner.Text())
		if err != nil {
			s.app.Printer.Error("%v", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		quit, err := s.exec(ctx, args)
		if err != nil {
			s.app.Printer.Error("%v", err)
		}
		if quit {
			return nil
		}
	}
}

// exec runs one command line. It reports whether the session should end.
func (s *shell) exec(ctx context.Context, args []string) (bool, error) {
	app := s.app
	name, rest := args[0], args[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(app.Printer.Writer(), sessionHelp)
	case "steps":
		app.Printer.Canvas(app.Store.Snapshot(), app.Viewport.State())
	case "select":
		if len(rest) != 1 {
			return false, usage("select <id>")
		}
		panel, err := app.Bridge.Open(step.ID(rest[0]))
		if err != nil {
			return false, err
		}
		app.Printer.Panel(panel)
	case "close":
		app.Bridge.Close()
	case "show":
		panel, ok := app.Bridge.Selected()
		if !ok {
			return false, errNoStepOpen
		}
		app.Printer.Panel(panel)
	case "set", "add":
		if len(rest) < 2 {
			return false, usage(name + " <field> <value>")
		}
		id, err := s.selected()
		if err != nil {
			return false, err
		}
		value := strings.Join(rest[1:], " ")
		if name == "set" {
			return false, app.Bridge.Edit(id, rest[0], value)
		}
		return false, app.Bridge.Append(id, rest[0], value)
	case "remove":
		if len(rest) != 2 {
			return false, usage("remove <field> <index>")
		}
		id, err := s.selected()
		if err != nil {
			return false, err
		}
		index, err := strconv.Atoi(rest[1])
		if err != nil {
			return false, fmt.Errorf("invalid index %q", rest[1])
		}
		return false, app.Bridge.Remove(id, rest[0], index)
	case "status":
		if len(rest) != 1 {
			return false, usage("status <not-started|in-progress|complete>")
		}
		id, err := s.selected()
		if err != nil {
			return false, err
		}
		st, err := status.Parse(rest[0])
		if err != nil {
			return false, err
		}
		return false, app.Bridge.SetStatus(id, st)
	case "run":
		return false, s.runStep(ctx, rest)
	case "wait":
		app.Bridge.Wait()
		if panel, ok := app.Bridge.Selected(); ok {
			app.Printer.Panel(panel)
		}
	case "cancel", "request":
		if len(rest) != 0 {
			return false, usage(name)
		}
		id, err := s.selected()
		if err != nil {
			return false, err
		}
		if name == "cancel" {
			if _, ok := app.Bridge.InFlight(id); !ok {
				return false, fmt.Errorf("no analysis running for step %s", id)
			}
			app.Bridge.Cancel(id)
			app.Printer.Info("Cancelled analysis of step %s", id)
			return false, nil
		}
		app.Printer.Session(app.Bridge.Session(id))
	case "zoom":
		return false, s.zoom(rest)
	case "key":
		return false, s.key(rest)
	case "pointer":
		return false, s.pointer(rest)
	case "wheel":
		return false, s.wheel(rest)
	case "view":
		app.Printer.Viewport(app.Viewport.State())
	case "blur":
		app.Viewport.Blur()
	default:
		return false, fmt.Errorf("unknown command %q, type help", name)
	}
	return false, nil
}

func usage(form string) error {
	return fmt.Errorf("usage: %s", form)
}

func (s *shell) selected() (step.ID, error) {
	id := s.app.Store.SelectedID()
	if id == "" {
		return "", errNoStepOpen
	}
	return id, nil
}

func (s *shell) runStep(ctx context.Context, args []string) error {
	wait := false
	for _, a := range args {
		if a != "--wait" {
			return usage("run [--wait]")
		}
		wait = true
	}
	id, err := s.selected()
	if err != nil {
		return err
	}

	// The call belongs to the session, not to this command line.
	call, err := s.app.Bridge.Run(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	if !wait {
		s.app.Printer.Info("Analysis started (request %s)", call.Token)
		return nil
	}
	if _, err := call.Wait(ctx); err != nil {
		if msg := s.app.Bridge.Session(id).LastError; msg != "" {
			return errors.New(msg)
		}
		return err
	}
	panel, err := s.app.Bridge.PanelFor(id)
	if err != nil {
		return err
	}
	s.app.Printer.Panel(panel)
	return nil
}

func (s *shell) zoom(args []string) error {
	if len(args) != 1 {
		return usage("zoom in|out|reset")
	}
	vp := s.app.Viewport
	switch args[0] {
	case "in":
		vp.ZoomIn()
	case "out":
		vp.ZoomOut()
	case "reset":
		vp.Reset()
	default:
		return usage("zoom in|out|reset")
	}
	s.app.Printer.Viewport(vp.State())
	return nil
}

func (s *shell) key(args []string) error {
	if len(args) != 2 {
		return usage("key down|up <code>")
	}
	ev := viewport.KeyEvent{Code: args[1]}
	switch args[0] {
	case "down":
		if s.app.Viewport.KeyDown(ev) {
			s.app.Printer.Info("handled")
		}
	case "up":
		s.app.Viewport.KeyUp(ev)
	default:
		return usage("key down|up <code>")
	}
	return nil
}

func (s *shell) pointer(args []string) error {
	const form = "pointer down <button> <target> <x> <y> | move <x> <y> | up | leave"
	if len(args) == 0 {
		return usage(form)
	}
	vp := s.app.Viewport
	switch args[0] {
	case "down":
		if len(args) != 5 {
			return usage(form)
		}
		button, err := viewport.ParseButton(args[1])
		if err != nil {
			return err
		}
		target, err := viewport.ParseTarget(args[2])
		if err != nil {
			return err
		}
		x, y, err := parsePoint(args[3], args[4])
		if err != nil {
			return err
		}
		if vp.PointerDown(viewport.PointerEvent{Button: button, Target: target, X: x, Y: y}) {
			s.app.Printer.Info("panning")
		}
	case "move":
		if len(args) != 3 {
			return usage(form)
		}
		x, y, err := parsePoint(args[1], args[2])
		if err != nil {
			return err
		}
		vp.PointerMove(viewport.PointerEvent{X: x, Y: y})
	case "up":
		vp.PointerUp(viewport.PointerEvent{})
	case "leave":
		vp.PointerLeave()
	default:
		return usage(form)
	}
	return nil
}

func (s *shell) wheel(args []string) error {
	const form = "wheel <dx> <dy> [ctrl|meta]"
	if len(args) < 2 || len(args) > 3 {
		return usage(form)
	}
	dx, dy, err := parsePoint(args[0], args[1])
	if err != nil {
		return err
	}
	ev := viewport.WheelEvent{DeltaX: dx, DeltaY: dy}
	if len(args) == 3 {
		switch args[2] {
		case "ctrl":
			ev.Ctrl = true
		case "meta":
			ev.Meta = true
		default:
			return usage(form)
		}
	}
	s.app.Viewport.Wheel(ev)
	s.app.Printer.Viewport(s.app.Viewport.State())
	return nil
}

func parsePoint(xs, ys string) (float64, float64, error) {
	x, err := parseCoord(xs)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseCoord(ys)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// parseCoord parses a finite number. NaN and infinities are rejected.
func parseCoord(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}
