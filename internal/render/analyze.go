package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/probe"
)

const maxValueLen = 120

// TypeName names the JSON type of a decoded value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case map[string]any, []any:
		b, err := jsonutil.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(b)
		}
	case nil:
		s = "null"
	default:
		s = fmt.Sprint(val)
	}
	if len(s) > maxValueLen {
		s = cut(s, maxValueLen) + "..."
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields lists "key: type = value" for each field of a JSON object, with
// object-valued fields expanded one level, indented. Credential fields are
// masked. Anything but an object yields nil.
func Fields(v any) []string {
	obj, ok := MaskJSON(v).(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, k := range sortedKeys(obj) {
		val := obj[k]
		out = append(out, fmt.Sprintf("%s: %s = %s", k, TypeName(val), formatValue(val)))
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			for _, nk := range sortedKeys(nested) {
				nv := nested[nk]
				out = append(out, fmt.Sprintf("    %s: %s = %s", nk, TypeName(nv), formatValue(nv)))
			}
		}
	}
	return out
}

// User is one row of an admin user listing.
type User struct {
	ID        string
	Email     string
	Role      string
	Confirmed bool
}

// UserSummary condenses an admin user listing.
type UserSummary struct {
	Total   int
	Filter  string
	Matched []User
}

// SummarizeUsers recognizes an admin listing body ({"users":[...]}) and
// returns its size plus the users whose email contains filter,
// case-insensitively. Bare arrays are table rows, not listings.
func SummarizeUsers(res probe.Result, filter string) (UserSummary, bool) {
	body, ok := res.JSON.(map[string]any)
	if !ok {
		return UserSummary{}, false
	}
	list, ok := body["users"].([]any)
	if !ok {
		return UserSummary{}, false
	}

	sum := UserSummary{Filter: filter}
	needle := strings.ToLower(filter)
	for _, raw := range list {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		email, _ := obj["email"].(string)
		if email == "" {
			continue
		}
		sum.Total++
		if needle == "" || !strings.Contains(strings.ToLower(email), needle) {
			continue
		}
		u := User{Email: email}
		u.ID, _ = obj["id"].(string)
		confirmed, _ := obj["email_confirmed_at"].(string)
		u.Confirmed = confirmed != ""
		u.Role = metadataRole(obj)
		sum.Matched = append(sum.Matched, u)
	}
	if sum.Total == 0 && len(list) > 0 {
		return UserSummary{}, false
	}
	return sum, true
}

func metadataRole(user map[string]any) string {
	for _, key := range []string{"app_metadata", "user_metadata"} {
		if meta, ok := user[key].(map[string]any); ok {
			if role, ok := meta["role"].(string); ok && role != "" {
				return role
			}
		}
	}
	role, _ := user["role"].(string)
	return role
}
