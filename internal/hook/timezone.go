package hook

// UserTimezone reports the local UTC offset once per mount, in minutes with
// the browser sign convention: positive west of UTC.
type UserTimezone struct{}

func (UserTimezone) Mounted(ctx *Context) {
	ctx.PushEvent(EventSetTimezone, map[string]any{"offset": TimezoneOffset(ctx.Page.now())})
}

func (UserTimezone) Updated(*Context) {}

func (UserTimezone) Destroyed(*Context) {}
