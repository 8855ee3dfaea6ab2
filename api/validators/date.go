package validators

import (
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
)

const dateLayout = "2006-01-02"

// ParseDate reads an optional YYYY-MM-DD value as a UTC calendar day.
func ParseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(*raw), time.UTC)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "must be a date in YYYY-MM-DD format"})
	}
	return &day, nil
}
