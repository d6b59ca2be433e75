package engine

import (
	"context"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

func (e *Engine) Users(ctx context.Context, q *model.UserQuery, page query.Page) ([]*model.User, int64, error) {
	total, err := e.daos.Identity.CountUsers(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Identity.ListUsers(ctx, q, page)
	return list, total, err
}

func (e *Engine) User(ctx context.Context, id string) (*model.User, error) {
	u, err := e.daos.Identity.GetUser(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a user with id '%s'.", id)
	}
	return u, nil
}

func (e *Engine) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		return apperr.IllegalArgument("Id cannot be null.")
	}
	return e.tx(ctx, func(ctx context.Context) error {
		_, err := e.daos.Identity.GetUser(ctx, u.ID)
		if err == nil {
			return apperr.Conflict("A user with id '%s' already exists.", u.ID)
		}
		if !isMissing(err) {
			return err
		}
		return e.daos.Identity.CreateUser(ctx, u)
	})
}

// UpdateUser applies fn to the stored user.
func (e *Engine) UpdateUser(ctx context.Context, id string, fn func(u *model.User)) (*model.User, error) {
	var user *model.User
	err := e.tx(ctx, func(ctx context.Context) error {
		u, err := e.User(ctx, id)
		if err != nil {
			return err
		}
		fn(u)
		u.ID = id
		if err := e.daos.Identity.UpdateUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.User(ctx, id); err != nil {
			return err
		}
		return e.daos.Identity.DeleteUser(ctx, id)
	})
}

func (e *Engine) Groups(ctx context.Context, q *model.GroupQuery, page query.Page) ([]*model.Group, int64, error) {
	total, err := e.daos.Identity.CountGroups(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	list, err := e.daos.Identity.ListGroups(ctx, q, page)
	return list, total, err
}

func (e *Engine) Group(ctx context.Context, id string) (*model.Group, error) {
	g, err := e.daos.Identity.GetGroup(ctx, id)
	if err != nil {
		return nil, notFound(err, "Could not find a group with id '%s'.", id)
	}
	return g, nil
}

func (e *Engine) CreateGroup(ctx context.Context, g *model.Group) error {
	if g.ID == "" {
		return apperr.IllegalArgument("Id cannot be null.")
	}
	return e.tx(ctx, func(ctx context.Context) error {
		_, err := e.daos.Identity.GetGroup(ctx, g.ID)
		if err == nil {
			return apperr.Conflict("A group with id '%s' already exists.", g.ID)
		}
		if !isMissing(err) {
			return err
		}
		return e.daos.Identity.CreateGroup(ctx, g)
	})
}

func (e *Engine) UpdateGroup(ctx context.Context, id string, fn func(g *model.Group)) (*model.Group, error) {
	var group *model.Group
	err := e.tx(ctx, func(ctx context.Context) error {
		g, err := e.Group(ctx, id)
		if err != nil {
			return err
		}
		fn(g)
		g.ID = id
		if err := e.daos.Identity.UpdateGroup(ctx, g); err != nil {
			return err
		}
		group = g
		return nil
	})
	return group, err
}

func (e *Engine) DeleteGroup(ctx context.Context, id string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.Group(ctx, id); err != nil {
			return err
		}
		return e.daos.Identity.DeleteGroup(ctx, id)
	})
}

func (e *Engine) AddMembership(ctx context.Context, groupID, userID string) (*model.Membership, error) {
	if userID == "" {
		return nil, apperr.IllegalArgument("UserId cannot be null.")
	}
	m := &model.Membership{UserID: userID, GroupID: groupID}
	err := e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.Group(ctx, groupID); err != nil {
			return err
		}
		if _, err := e.User(ctx, userID); err != nil {
			return err
		}
		_, err := e.daos.Identity.GetMembership(ctx, userID, groupID)
		if err == nil {
			return apperr.Conflict("User '%s' is already part of group '%s'.", userID, groupID)
		}
		if !isMissing(err) {
			return err
		}
		return e.daos.Identity.CreateMembership(ctx, m)
	})
	return m, err
}

func (e *Engine) DeleteMembership(ctx context.Context, groupID, userID string) error {
	return e.tx(ctx, func(ctx context.Context) error {
		if _, err := e.Group(ctx, groupID); err != nil {
			return err
		}
		if _, err := e.daos.Identity.GetMembership(ctx, userID, groupID); err != nil {
			return notFound(err, "User '%s' is not part of group '%s'.", userID, groupID)
		}
		return e.daos.Identity.DeleteMembership(ctx, userID, groupID)
	})
}
