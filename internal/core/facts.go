package core

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// ConfigWindowSince is the name of the configuration option which sets the beginning of the
	// analysis window, "YYYY-MM-DD". Empty means one year before the end.
	ConfigWindowSince = "Window.Since"
	// ConfigWindowUntil is the name of the configuration option which sets the end of the
	// analysis window, "YYYY-MM-DD" inclusive. Empty means now.
	ConfigWindowUntil = "Window.Until"
	// FactWindow carries the resolved Window. Set by Pipeline.Initialize() unless already present.
	FactWindow = "Window"
	// FactGitHubClient carries the *github.Client shared by all the pipeline items.
	FactGitHubClient = "GitHub.Client"
	// FactGitHubToken carries the GitHub token string which authenticates git clones over HTTPS.
	FactGitHubToken = "GitHub.Token"

	// DefaultWindowDays is the length of the analysis window if only the end is known.
	DefaultWindowDays = 365

	windowDateLayout = "2006-01-02"
)

// Window is the time range in which commits and CI runs are taken into account.
type Window struct {
	Since time.Time
	Until time.Time
}

// Contains checks whether the given moment falls inside the window. Both ends are inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && !t.After(w.Until)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.Until.Sub(w.Since)
}

// ParseWindow converts the textual dates to Window. `now` is the fallback end.
func ParseWindow(since, until string, now time.Time) (Window, error) {
	w := Window{Until: now.UTC()}
	if until != "" {
		t, err := time.Parse(windowDateLayout, until)
		if err != nil {
			return w, errors.Wrapf(err, "invalid end of the window %q", until)
		}
		// inclusive
		w.Until = t.Add(24*time.Hour - time.Second)
	}
	if since != "" {
		t, err := time.Parse(windowDateLayout, since)
		if err != nil {
			return w, errors.Wrapf(err, "invalid beginning of the window %q", since)
		}
		w.Since = t
	} else {
		w.Since = w.Until.AddDate(0, 0, -DefaultWindowDays)
	}
	if !w.Since.Before(w.Until) {
		return w, errors.Errorf("empty window: %s .. %s",
			w.Since.Format(windowDateLayout), w.Until.Format(windowDateLayout))
	}
	return w, nil
}

// DereferenceFacts replaces the pointers to the command line flag values with the values
// themselves. See PipelineItemRegistry.AddFlags().
func DereferenceFacts(facts map[string]interface{}) {
	for key, val := range facts {
		switch ptr := val.(type) {
		case *bool:
			facts[key] = *ptr
		case *int:
			facts[key] = *ptr
		case *string:
			facts[key] = *ptr
		case *float64:
			facts[key] = *ptr
		case *[]string:
			facts[key] = *ptr
		}
	}
}
