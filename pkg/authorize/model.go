package authorize

import (
	"github.com/casbin/casbin/v2/model"
)

// DefaultModel is the RBAC-with-domains model used when no model file is
// configured. "manage" on a resource grants every action on it.
const DefaultModel = `[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act, eft

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub, r.dom) && (p.dom == "*" || p.dom == r.dom) && (p.obj == "*" || p.obj == r.obj) && (p.act == "*" || p.act == "manage" || p.act == r.act)
`

// LoadModel reads the model from path, or falls back to DefaultModel when
// path is empty.
func LoadModel(path string) (model.Model, error) {
	if path == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(path)
}
