package salesforce

import (
	"strings"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// BuildSelect synthesizes SELECT f1,f2 FROM object.
func BuildSelect(object string, fields []string) (string, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return "", errors.New(errors.ErrorTypeValidation, "object name is empty")
	}
	if len(fields) == 0 {
		return "", errors.Newf(errors.ErrorTypeValidation, "object %s has no fields to select", object)
	}
	return "SELECT " + strings.Join(fields, ",") + " FROM " + object, nil
}

// SelectFields returns the describe field names, restricted to wanted when
// wanted is non-empty. Matching is case-insensitive and the result keeps
// describe order. A wanted field the object does not have is an error.
func SelectFields(desc *SObjectDescribe, wanted []string) ([]string, error) {
	all := desc.FieldNames()
	if len(wanted) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		if w = strings.TrimSpace(w); w != "" {
			want[strings.ToLower(w)] = true
		}
	}

	out := make([]string, 0, len(want))
	for _, name := range all {
		key := strings.ToLower(name)
		if want[key] {
			out = append(out, name)
			delete(want, key)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, w := range wanted {
			if want[strings.ToLower(strings.TrimSpace(w))] {
				missing = append(missing, strings.TrimSpace(w))
			}
		}
		return nil, errors.Newf(errors.ErrorTypeValidation, "object %s has no field(s) %s", desc.Name, strings.Join(missing, ", "))
	}
	return out, nil
}
