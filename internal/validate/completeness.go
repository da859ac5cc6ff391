package validate

import (
	"fmt"
	"strings"

	"github.com/sells-group/sports-qc/internal/model"
)

// Completeness fails when any required field is missing, nil or an empty
// string.
func Completeness(fields map[string]any, required []string, check string) model.CheckResult {
	var missing []string
	for _, name := range required {
		if isEmpty(fields[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		n := len(missing)
		return model.CheckResult{
			Check:           check,
			Status:          model.CheckFail,
			Message:         fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			AffectedRecords: &n,
			Details:         map[string]any{"missing_fields": missing},
		}
	}
	return model.CheckResult{
		Check:   check,
		Status:  model.CheckPass,
		Message: "all required fields present",
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case *string:
		return x == nil || *x == ""
	case *int:
		return x == nil
	case *float64:
		return x == nil
	}
	return false
}
