package auth_tokens

import (
	"github.com/horockey/fit/internal/model"
)

// Repository stores issued tokens by value.
// Get of an unknown token returns a model.CodeNotFound error.
type Repository interface {
	model.MetricsProvider
	Save(tokens ...model.AuthTokenRole) error
	Get(token string) (model.AuthTokenRole, error)
	Remove(tokens ...string) error
	GetAll() ([]model.AuthTokenRole, error)
}
