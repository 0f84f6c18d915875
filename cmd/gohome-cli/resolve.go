package main

import (
	"fmt"
	"sort"
	"strings"
)

// normalizeName folds case and treats spaces, dashes and underscores alike.
func normalizeName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

func resolveNamedID(kind, input string, options map[string]string) (string, error) {
	needle := normalizeName(input)
	labels := make([]string, 0, len(options))
	for label, id := range options {
		if normalizeName(label) == needle {
			return id, nil
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return "", fmt.Errorf("%s %q not found. Available: %s", kind, input, strings.Join(labels, ", "))
}
