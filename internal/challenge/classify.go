package challenge

import "strings"

// The popup is classified from localized text markers. The panel serves a
// mix of Chinese and English strings depending on account locale, so both
// sets are matched. Precedence: an error marker always wins, then cooldown,
// then success — and success additionally requires a next-style button to
// be present, since the success title alone also appears in unrelated
// toasts. This is a best-effort heuristic over a third-party UI.
var (
	errorMarkers = []string{
		"错误", "失败", "error", "failed",
	}
	cooldownMarkers = []string{
		"还不能", "暂时无法", "请稍后", "not yet", "too early", "cooldown",
	}
	successMarkers = []string{
		"续期成功", "成功", "已延长", "延长", "renewed", "extended", "success",
	}
)

type rule struct {
	outcome     Outcome
	requireNext bool
	markers     []string
}

// Ordered precedence table; first matching rule decides.
var rules = []rule{
	{OutcomeCooldown, false, errorMarkers},
	{OutcomeCooldown, false, cooldownMarkers},
	{OutcomeSuccess, true, successMarkers},
}

// Classify maps popup text (plus whether a next-style button is visible)
// onto an outcome. Unknown means the popup is showing something we cannot
// yet interpret; callers keep polling.
func Classify(text string, hasNext bool) Outcome {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		if r.requireNext && !hasNext {
			continue
		}
		if containsAny(lowered, r.markers) {
			return r.outcome
		}
	}
	return OutcomeUnknown
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
