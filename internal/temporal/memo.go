package temporal

import "strings"

const memoLimitBytes = 2048

// RunMemo builds the memo attached to an orchestration workflow so runs are
// identifiable from Temporal tooling without querying them. Task text is
// truncated; oversized prompts must not bloat workflow metadata.
func RunMemo(task, strategy string) map[string]interface{} {
	memo := map[string]interface{}{
		"strategy": strategy,
	}
	if trimmed := strings.TrimSpace(task); trimmed != "" {
		memo["task"] = truncateMemo(trimmed)
	}
	return memo
}

func truncateMemo(value string) string {
	if len(value) <= memoLimitBytes {
		return value
	}
	if memoLimitBytes <= 3 {
		return value[:memoLimitBytes]
	}
	return value[:memoLimitBytes-3] + "..."
}
