package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pmcopilot/internal/editor"
	"pmcopilot/internal/router"
	"pmcopilot/internal/status"
	"pmcopilot/internal/step"
	"pmcopilot/internal/viewport"
	"pmcopilot/internal/workflow"
)

type stepView struct {
	ID          step.ID        `json:"id"`
	Kind        step.Kind      `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      status.Status  `json:"status"`
	Selected    bool           `json:"selected"`
	Data        map[string]any `json:"data"`
}

func newStepView(s workflow.Step, selected step.ID) (stepView, error) {
	data, err := s.Data.Values()
	if err != nil {
		return stepView{}, fmt.Errorf("step %s: %w", s.ID, err)
	}
	return stepView{
		ID:          s.ID,
		Kind:        s.Kind,
		Name:        s.Name,
		Description: s.Description,
		Status:      s.Status,
		Selected:    s.ID == selected,
		Data:        data,
	}, nil
}

type panelView struct {
	Step     stepView       `json:"step"`
	Icon     string         `json:"icon"`
	Goal     string         `json:"goal"`
	Fields   []router.Field `json:"fields"`
	Session  editor.Session `json:"session"`
	Blockers []string       `json:"blockers"`
	Warnings []string       `json:"warnings"`
	Ready    bool           `json:"ready"`
}

func newPanelView(p editor.Panel, selected step.ID) (panelView, error) {
	sv, err := newStepView(p.Step, selected)
	if err != nil {
		return panelView{}, err
	}
	v := panelView{
		Step:     sv,
		Session:  p.Session,
		Blockers: nonNil(p.Blockers),
		Warnings: nonNil(p.Warnings),
		Ready:    p.Ready,
	}
	if p.Route != nil {
		v.Icon = p.Route.Icon
		v.Goal = p.Route.Goal
		v.Fields = p.Route.Fields
	}
	return v, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Server) listSteps(w http.ResponseWriter, r *http.Request) {
	state := s.bridge.Store().Snapshot()
	views := make([]stepView, len(state.Steps))
	for i, st := range state.Steps {
		v, err := newStepView(st, state.SelectedID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		views[i] = v
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) getStep(w http.ResponseWriter, r *http.Request) {
	store := s.bridge.Store()
	st, err := store.Step(step.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	view, err := newStepView(st, store.SelectedID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type patchRequest struct {
	Status *string        `json:"status"`
	Data   map[string]any `json:"data"`
}

func (s *Server) patchStep(w http.ResponseWriter, r *http.Request) {
	id := step.ID(chi.URLParam(r, "id"))
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	var st *status.Status
	if req.Status != nil {
		parsed, err := status.Parse(*req.Status)
		if err != nil {
			s.writeError(w, badRequest{err: err})
			return
		}
		st = &parsed
	}

	if err := s.bridge.Apply(id, req.Data, st); err != nil {
		s.writeError(w, err)
		return
	}
	s.getStep(w, r)
}

type runResponse struct {
	StepID step.ID `json:"step_id"`
	Token  string  `json:"token"`
}

func (s *Server) runStep(w http.ResponseWriter, r *http.Request) {
	id := step.ID(chi.URLParam(r, "id"))
	call, err := s.bridge.Run(detach(r.Context()), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, runResponse{StepID: call.StepID, Token: call.Token})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := step.ID(chi.URLParam(r, "id"))
	if _, err := s.bridge.Store().Step(id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bridge.Session(id))
}

type selectionRequest struct {
	ID step.ID `json:"id"`
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, badRequest{err: fmt.Errorf("id is required")})
		return
	}
	panel, err := s.bridge.Open(req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writePanel(w, panel, req.ID)
}

func (s *Server) deleteSelection(w http.ResponseWriter, r *http.Request) {
	s.bridge.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPanel(w http.ResponseWriter, r *http.Request) {
	panel, ok := s.bridge.Selected()
	if !ok {
		s.writeError(w, errNoSelection)
		return
	}
	s.writePanel(w, panel, panel.Step.ID)
}

func (s *Server) writePanel(w http.ResponseWriter, p editor.Panel, selected step.ID) {
	view, err := newPanelView(p, selected)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type viewportView struct {
	viewport.State
	Cursor     viewport.Cursor `json:"cursor"`
	Transform  string          `json:"transform"`
	GridOffset viewport.Point  `json:"grid_offset"`
}

func (s *Server) viewportView() viewportView {
	st := s.viewport.State()
	return viewportView{
		State:      st,
		Cursor:     st.Cursor(),
		Transform:  st.Transform().String(),
		GridOffset: s.viewport.GridOffset(),
	}
}

func (s *Server) getViewport(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.viewportView())
}

func (s *Server) viewportAction(action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action()
		s.writeJSON(w, http.StatusOK, s.viewportView())
	}
}

// viewportEvent is one input event. Type selects which other fields apply.
type viewportEvent struct {
	Type        string          `json:"type"`
	Code        string          `json:"code"`
	Repeat      bool            `json:"repeat"`
	InTextInput bool            `json:"in_text_input"`
	Button      viewport.Button `json:"button"`
	Target      viewport.Target `json:"target"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	DeltaX      float64         `json:"delta_x"`
	DeltaY      float64         `json:"delta_y"`
	Ctrl        bool            `json:"ctrl"`
	Meta        bool            `json:"meta"`
}

type viewportEventResponse struct {
	// Handled reports that the event was consumed, i.e. the client should
	// suppress its default action.
	Handled  bool         `json:"handled"`
	Viewport viewportView `json:"viewport"`
}

func (s *Server) postViewportEvent(w http.ResponseWriter, r *http.Request) {
	var ev viewportEvent
	if err := decodeBody(r, &ev); err != nil {
		s.writeError(w, err)
		return
	}

	vp := s.viewport
	pointer := viewport.PointerEvent{Button: ev.Button, Target: ev.Target, X: ev.X, Y: ev.Y}
	var handled bool
	switch ev.Type {
	case "key_down":
		handled = vp.KeyDown(viewport.KeyEvent{Code: ev.Code, Repeat: ev.Repeat, InTextInput: ev.InTextInput})
	case "key_up":
		vp.KeyUp(viewport.KeyEvent{Code: ev.Code})
	case "pointer_down":
		handled = vp.PointerDown(pointer)
	case "pointer_move":
		vp.PointerMove(pointer)
	case "pointer_up":
		vp.PointerUp(pointer)
	case "pointer_leave":
		vp.PointerLeave()
	case "wheel":
		handled = vp.Wheel(viewport.WheelEvent{DeltaX: ev.DeltaX, DeltaY: ev.DeltaY, Ctrl: ev.Ctrl, Meta: ev.Meta})
	case "blur":
		vp.Blur()
	default:
		s.writeError(w, badRequest{err: fmt.Errorf("unknown event type %q", ev.Type)})
		return
	}
	s.writeJSON(w, http.StatusOK, viewportEventResponse{Handled: handled, Viewport: s.viewportView()})
}
