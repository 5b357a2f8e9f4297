// Package assistant classifies chat utterances against the user's task snapshot and
// answers the ones it can without calling the remote model.
package assistant

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/overlax/overlax/internal/models"
)

// Kind is the shape of a routing result
type Kind string

const (
	KindReply       Kind = "reply"
	KindShowAddForm Kind = "showAddForm"
	KindDeferred    Kind = "deferred"
)

// Intent names the rule that produced a result
type Intent string

const (
	IntentLoginRequired Intent = "login_required"
	IntentAddTask       Intent = "add_task"
	IntentRefresh       Intent = "refresh"
	IntentToday         Intent = "today"
	IntentTomorrow      Intent = "tomorrow"
	IntentOverdue       Intent = "overdue"
	IntentCategory      Intent = "category"
	IntentAll           Intent = "all"
	IntentWeek          Intent = "week"
	IntentUrgent        Intent = "urgent"
	IntentNone          Intent = "none"
)

// Input is what the router classifies. Tasks is read, never modified.
type Input struct {
	Utterance     string
	Tasks         []models.Task
	Authenticated bool
}

// Result is the router's answer for one utterance
type Result struct {
	Kind   Kind
	Intent Intent
	Text   string
}

// Refresher triggers an out-of-band refetch of the task snapshot.
// Implementations must not block.
type Refresher interface {
	Refresh()
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func()

// Refresh calls f.
func (f RefresherFunc) Refresh() {
	f()
}

// Router maps utterances to canned replies using an ordered rule table
type Router struct {
	rules     []rule
	now       func() time.Time
	loc       *time.Location
	refresher Refresher
}

// Option configures a Router
type Option func(*Router)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the time zone used for day boundaries and rendering.
func WithLocation(loc *time.Location) Option {
	return func(r *Router) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithRefresher sets the hook invoked by the refresh intent.
func WithRefresher(refresher Refresher) Option {
	return func(r *Router) {
		r.refresher = refresher
	}
}

// NewRouter creates a router with the default rule table
func NewRouter(opts ...Option) *Router {
	r := &Router{
		rules: defaultRules(),
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the time zone the router renders in.
func (r *Router) Location() *time.Location {
	return r.loc
}

// Intents lists the rule order, highest precedence first.
func (r *Router) Intents() []Intent {
	out := make([]Intent, 0, len(r.rules))
	for _, rl := range r.rules {
		out = append(out, rl.intent)
	}
	return out
}

// Route classifies one utterance. The first matching rule wins.
func (r *Router) Route(in Input) Result {
	text := normalize(in.Utterance)
	if text == "" {
		return Result{Kind: KindDeferred, Intent: IntentNone}
	}

	now := r.now().In(r.loc)
	q := &query{
		text:          text,
		tasks:         in.Tasks,
		authenticated: in.Authenticated,
		now:           now,
		today:         startOfDay(now, r.loc),
		loc:           r.loc,
	}

	for _, rl := range r.rules {
		if rl.match(q) {
			return rl.handle(r, q)
		}
	}
	return Result{Kind: KindDeferred, Intent: IntentNone}
}

func normalize(utterance string) string {
	return strings.ToLower(strings.TrimSpace(utterance))
}

// containsAny reports whether text mentions any keyword. ASCII keywords must
// stand as whole words, optionally inflected ("tasks", "synced"); Bengali
// keywords match as substrings since they take attached suffixes.
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if isASCII(kw) {
			if containsWord(text, kw) {
				return true
			}
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var wordSuffixes = []string{"s", "es", "ed", "d"}

func containsWord(text, kw string) bool {
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		if i == 0 || !isWordByte(text[i-1]) {
			rest := text[i+len(kw):]
			if rest == "" || !isWordByte(rest[0]) {
				return true
			}
			for _, suffix := range wordSuffixes {
				if strings.HasPrefix(rest, suffix) && (len(rest) == len(suffix) || !isWordByte(rest[len(suffix)])) {
					return true
				}
			}
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
