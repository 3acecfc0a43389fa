// Package report renders a run report for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/osteele/liquid"

	"github.com/ignite/aliasguard/internal/domain"
)

// Formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Result states shown in the text report.
const (
	StateClean       = "clean"
	StateDeactivated = "deactivated"
	StateBreached    = "breached"
	StateError       = "error"
)

const textTemplate = `aliasguard run {{ run_id }}{% if dry_run %} (dry run){% endif %}
{% for r in results -%}
{{ r.email }}  [{{ r.state | paint: r.state }}]
{%- if r.breaches.size > 0 %}  breaches: {{ r.breaches | join: ", " }}{% endif %}
{%- if r.error != "" %}  error: {{ r.error }}{% endif %}
{% endfor -%}
checked {{ checked }}, breached {{ breached }}, deactivated {{ deactivated }}, failed {{ failed }} in {{ duration }}
`

var textTpl = mustParse(newEngine(), textTemplate)

func mustParse(e *liquid.Engine, src string) *liquid.Template {
	tpl, err := e.ParseString(src)
	if err != nil {
		panic(fmt.Sprintf("report: parsing text template: %v", err))
	}
	return tpl
}

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()
	e.RegisterFilter("paint", paint)
	return e
}

var stateColors = map[string]*color.Color{
	StateClean:       color.New(color.FgGreen),
	StateDeactivated: color.New(color.FgYellow, color.Bold),
	StateBreached:    color.New(color.FgRed, color.Bold),
	StateError:       color.New(color.FgRed),
}

// paint colours s for the given state; a no-op when colour is disabled.
func paint(s, state string) string {
	if c, ok := stateColors[state]; ok {
		return c.Sprint(s)
	}
	return s
}

// State classifies a result for display.
func State(r domain.CheckResult) string {
	switch {
	case r.Deactivated:
		return StateDeactivated
	case r.Error != nil:
		return StateError
	case r.Breached():
		return StateBreached
	default:
		return StateClean
	}
}

// Render writes report to w in the requested format.
func Render(w io.Writer, report *domain.Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return nil
	case FormatText, "":
		out, err := textTpl.RenderString(bindings(report))
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}
		_, werr := io.WriteString(w, out)
		return werr
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func bindings(report *domain.Report) liquid.Bindings {
	results := make([]map[string]interface{}, 0, len(report.Results))
	for _, r := range report.Results {
		errMsg := ""
		if r.Error != nil {
			errMsg = r.Error.Message
		}
		results = append(results, map[string]interface{}{
			"email":    r.Alias.Email,
			"id":       r.Alias.ID,
			"state":    State(r),
			"breaches": domain.BreachNames(r.Breaches),
			"error":    errMsg,
		})
	}

	return liquid.Bindings{
		"run_id":      report.RunID,
		"dry_run":     report.DryRun,
		"results":     results,
		"checked":     report.Checked(),
		"breached":    report.Breached(),
		"deactivated": report.Deactivated(),
		"failed":      report.Failed(),
		"duration":    report.Duration().Round(time.Millisecond).String(),
	}
}
