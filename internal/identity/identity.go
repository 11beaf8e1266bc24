// Package identity derives dataset and system names from conversation ids.
//
// A conversation id has the form {system}_{dataset}[_...]. The first two
// underscore-separated components are mandatory.
package identity

import (
	"strings"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

const separator = "_"

func split(convID string) ([]string, error) {
	parts := strings.Split(convID, separator)
	if len(parts) < 2 {
		return nil, apperrors.MalformedIdentityError(convID)
	}
	return parts, nil
}

// DatasetOf returns the dataset component of convID.
func DatasetOf(convID string) (string, error) {
	parts, err := split(convID)
	if err != nil {
		return "", err
	}
	return parts[1], nil
}

// SystemOf returns the system identifier of convID: its first two
// components joined by an underscore.
func SystemOf(convID string) (string, error) {
	parts, err := split(convID)
	if err != nil {
		return "", err
	}
	return parts[0] + separator + parts[1], nil
}
