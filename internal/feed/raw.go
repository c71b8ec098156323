package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/newsauto/internal/models"
)

// Accessors over decoded JSON records. encoding/json yields float64 for
// every number, so integer reads go through float64.

func rawString(r models.RawItem, key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func rawInt(r models.RawItem, key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func rawFloat(r models.RawItem, key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func rawBool(r models.RawItem, key string) bool {
	v, _ := r[key].(bool)
	return v
}

func rawMap(r models.RawItem, key string) models.RawItem {
	v, _ := r[key].(map[string]any)
	return v
}

func rawStrings(r models.RawItem, key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func rawUnix(r models.RawItem, key string) *time.Time {
	secs := rawFloat(r, key)
	if secs <= 0 {
		return nil
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
