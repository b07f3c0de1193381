package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/zishang520/engine.io/v2/log"
)

var logger = log.NewLog("gateway:database")

const restfulRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Casbin builds an in-memory enforcer that grants the admin role the
// /v1/admin routes and assigns it to every user id in admins.
func Casbin(admins []string) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(restfulRBACModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	// Add default policy
	if _, err := e.AddPolicy("admin", "/v1/admin*", "(GET)|(POST)|(PUT)|(DELETE)"); err != nil {
		return nil, err
	}
	for _, user := range admins {
		if user == "" {
			continue
		}
		if _, err := e.AddRoleForUser(user, "admin"); err != nil {
			return nil, err
		}
	}
	return e, nil
}
