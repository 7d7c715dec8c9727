package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitList splits a comma separated query value, dropping blanks
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseIDs parses a comma separated list of item ids
func ParseIDs(raw string) ([]int64, error) {
	parts := SplitList(raw)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id '%s': %v", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
