// internal/auth/params.go
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/ssobridge/api/schemas"
)

// InstanceIDParam is the fragment parameter carrying the instance identifier.
const InstanceIDParam = "instanceId"

var instanceIDAliases = []string{InstanceIDParam, "instance_id"}

// FragmentParamExtractor parses the identity provider's redirect fragment.
type FragmentParamExtractor struct{}

var _ schemas.QueryParamExtractor = FragmentParamExtractor{}

// RequiredQueryParams parses fragment as key=value pairs joined by '&'. A
// leading '#' is tolerated. The instance identifier must be present and
// non-empty.
func (FragmentParamExtractor) RequiredQueryParams(fragment string) (schemas.QueryParams, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return schemas.QueryParams{}, fmt.Errorf("malformed redirect fragment: %w", err)
	}
	for _, key := range instanceIDAliases {
		if id := values.Get(key); id != "" {
			return schemas.NewQueryParams(id, values), nil
		}
	}
	return schemas.QueryParams{}, &schemas.MissingParamError{Param: "instance_id"}
}
