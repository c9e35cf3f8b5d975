package hook

import "vigil/internal/media"

// RosaryProgress remembers the position within a set of prayers. On mount a
// live record is offered back to the server as restore_progress; every update
// saves data-current-index; removal from the page forgets the set, while a
// page shutdown keeps it for the next run.
type RosaryProgress struct {
	ctx   *Context
	setID string
}

func (h *RosaryProgress) Mounted(ctx *Context) {
	h.ctx = ctx
	h.setID = ctx.El.Data("set-id")
	if h.setID == "" {
		return
	}
	if rec, ok := ctx.Page.svc.Progress.Load(h.setID); ok {
		ctx.PushEvent(EventRestoreProgress, map[string]any{"index": rec.Index})
	}
}

func (h *RosaryProgress) Updated(ctx *Context) {
	if id := ctx.El.Data("set-id"); id != "" {
		h.setID = id
	}
	if h.setID == "" {
		return
	}
	if idx, ok := dataInt(ctx.El, "current-index"); ok {
		ctx.Page.svc.Progress.Save(h.setID, idx)
	}
}

func (h *RosaryProgress) Destroyed(ctx *Context) {
	if h.setID != "" && !ctx.Page.Unloading() {
		h.ctx.Page.svc.Progress.Clear(h.setID)
	}
}

// Record returns the stored progress for the hook's set.
func (h *RosaryProgress) Record() (media.ProgressRecord, bool) {
	if h.setID == "" {
		return media.ProgressRecord{}, false
	}
	return h.ctx.Page.svc.Progress.Load(h.setID)
}
