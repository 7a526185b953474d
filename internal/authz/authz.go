// Package authz decides whether a team role may act on another member's out-of-office entries.
package authz

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/go-faster/errors"

	"awaydesk/backend/internal/domain"
)

const (
	ObjectEntry        = "ooo_entry"
	ActionManageMember = "manage_member"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Policy grants Role the Action on Object.
type Policy struct {
	Role   domain.MembershipRole
	Object string
	Action string
}

// DefaultPolicies lets team admins and owners manage the entries of their members.
func DefaultPolicies() []Policy {
	return []Policy{
		{Role: domain.MembershipRoleAdmin, Object: ObjectEntry, Action: ActionManageMember},
		{Role: domain.MembershipRoleOwner, Object: ObjectEntry, Action: ActionManageMember},
	}
}

type Authorizer struct {
	enforcer *casbin.Enforcer
	policies []Policy
}

func New(policies []Policy) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, errors.Wrap(err, "authz: parse model")
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "authz: init enforcer")
	}
	for _, p := range policies {
		if _, err := enf.AddPolicy(string(p.Role), p.Object, p.Action); err != nil {
			return nil, errors.Wrapf(err, "authz: add policy for %s", p.Role)
		}
	}
	return &Authorizer{enforcer: enf, policies: append([]Policy(nil), policies...)}, nil
}

// Allowed reports whether any of roles is granted action on object.
func (a *Authorizer) Allowed(roles []domain.MembershipRole, object, action string) (bool, error) {
	for _, role := range roles {
		ok, err := a.enforcer.Enforce(string(role), object, action)
		if err != nil {
			return false, errors.Wrap(err, "authz: enforce")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (a *Authorizer) CanManageMember(roles []domain.MembershipRole) (bool, error) {
	return a.Allowed(roles, ObjectEntry, ActionManageMember)
}

// ManagingRoles lists the roles that may manage other members' entries.
func (a *Authorizer) ManagingRoles() []domain.MembershipRole {
	var roles []domain.MembershipRole
	for _, p := range a.policies {
		if p.Object == ObjectEntry && p.Action == ActionManageMember {
			roles = append(roles, p.Role)
		}
	}
	return roles
}
