package condense

import (
	"strings"
	"text/template"
)

// Tier is the escalation level of the length-contract warning appended to the
// system prompt. An attempt with no prior length-contract misses carries no
// warning; each miss escalates one tier, capped at TierFinal. Transport
// failures do not escalate: the warning speaks about output that was
// produced, so it is keyed to misses, not to raw attempt count. A prompt
// carries at most one warning sentence regardless of how many retries
// preceded it.
type Tier int

const (
	TierNone Tier = iota
	TierReminder
	TierSerious
	TierFinal
)

// String returns the tier name for logging.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierReminder:
		return "reminder"
	case TierSerious:
		return "serious"
	case TierFinal:
		return "final"
	default:
		return "unknown"
	}
}

// TierForMisses maps the number of prior length-contract misses to the
// warning tier for the next attempt.
func TierForMisses(misses int) Tier {
	if misses <= 0 {
		return TierNone
	}
	if misses > int(TierFinal) {
		return TierFinal
	}
	return Tier(misses)
}

// warning returns the escalation sentence for a tier, empty for TierNone.
func (t Tier) warning() string {
	switch t {
	case TierReminder:
		return "Reminder: your previous attempt came out far too short. The condensed text must be at least the minimum length given above."
	case TierSerious:
		return "Serious warning: you have repeatedly produced text below the minimum length. Do not compress this aggressively; keep scenes and dialogue so the result stays within the required band."
	case TierFinal:
		return "Final warning: this is the last attempt. Producing text shorter than the minimum length is a failure. Retain enough of the original narrative to meet the minimum."
	default:
		return ""
	}
}

var systemTmpl = template.Must(template.New("system").Parse(
	`You are condensing a passage from a longer book. Rewrite the passage so that the result is between {{.MinChars}} and {{.MaxChars}} characters long, ideally about {{.IdealChars}} characters.

Preserve the plot, important dialogue, and the author's narrative voice. Write flowing prose in the original style; do not produce an outline, a bullet list, or a synopsis. Do not add commentary or headings of your own.{{if .Warning}}

{{.Warning}}{{end}}`))

var userTmpl = template.Must(template.New("user").Parse(
	`Condense the following text to between {{.MinChars}} and {{.MaxChars}} characters (aim for roughly {{.IdealChars}}). Reply with the condensed text only.

{{.Body}}`))

// SystemPrompt renders the system instruction for a target band and tier.
func SystemPrompt(target LengthTarget, tier Tier) string {
	var sb strings.Builder
	_ = systemTmpl.Execute(&sb, struct {
		MinChars, IdealChars, MaxChars int
		Warning                        string
	}{target.MinChars, target.IdealChars, target.MaxChars, tier.warning()})
	return sb.String()
}

// UserPrompt renders the user instruction carrying the source text.
func UserPrompt(body string, target LengthTarget) string {
	var sb strings.Builder
	_ = userTmpl.Execute(&sb, struct {
		MinChars, IdealChars, MaxChars int
		Body                           string
	}{target.MinChars, target.IdealChars, target.MaxChars, body})
	return sb.String()
}
