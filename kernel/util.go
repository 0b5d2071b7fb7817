package kernel

import (
	"net/http"
)

// BindJSON aborts with 400 when the body does not decode into obj.
func (rt *RequestRuntime) BindJSON(obj any) bool {
	if err := rt.RequestContext.ShouldBindJSON(obj); err != nil {
		rt.E(http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// Validatable is satisfied by ozzo-validation rule sets.
type Validatable interface {
	Validate() error
}

func (rt *RequestRuntime) BindValid(obj Validatable) bool {
	if !rt.BindJSON(obj) {
		return false
	}
	if err := obj.Validate(); err != nil {
		rt.E(http.StatusBadRequest, err.Error(), err)
		return false
	}
	return true
}
