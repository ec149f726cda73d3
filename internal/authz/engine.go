package authz

import (
	"reservation-system/internal/entities"
)

// Policy - проверка прав: роль (RBAC) плюс владение заявкой (ABAC).
type Policy struct {
	oversight map[string]struct{}
}

func NewPolicy(oversightRoles []string) *Policy {
	set := make(map[string]struct{}, len(oversightRoles))
	for _, r := range oversightRoles {
		set[r] = struct{}{}
	}
	return &Policy{oversight: set}
}

// IsOversight - роль одобряет заявки и получает уведомления по всем единицам.
func (p *Policy) IsOversight(role string) bool {
	_, ok := p.oversight[role]
	return ok
}

type Context struct {
	ActorID uint64
	Role    string
	// Target - заявка, над которой выполняется действие (может быть nil).
	Target *entities.Reservation
}

func (p *Policy) CanDo(permission string, ctx Context) bool {
	// 1. Контролирующие роли могут всё
	if p.IsOversight(ctx.Role) {
		return true
	}

	// 2. Только для контролирующих ролей
	if oversightOnly[permission] {
		return false
	}

	// 3. Проверка владения заявкой
	if ownerScoped[permission] {
		return ctx.Target != nil && ctx.Target.RequesterID == ctx.ActorID
	}

	return true
}
