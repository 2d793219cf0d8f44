package auth_grants

import (
	"github.com/horockey/fit/internal/model"
)

// Repository holds static credentials and the permissions of their roles.
// Lookups of unknown entries return a model.CodeNotFound error.
type Repository interface {
	model.MetricsProvider
	SaveKeys(keys ...model.AuthKey) error
	Key(ak string) (model.AuthKey, error)
	SaveRoles(roles ...model.RolePermissions) error
	Role(role string) (model.RolePermissions, error)
}
