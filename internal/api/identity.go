package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

type IdentityController struct {
	*core.BaseComponent
	Engine *engine.Engine `infra:"dep:process_engine"`
}

func NewIdentityController() *IdentityController {
	return &IdentityController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_IDENTITY)}
}

func (c *IdentityController) Routes(r chi.Router) {
	users := lister[model.UserQuery, *model.User, userResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":        "id",
			"firstName": "first_",
			"lastName":  "last_",
			"email":     "email",
		},
		fetch: func(ctx context.Context, q *model.UserQuery, page query.Page) ([]*model.User, int64, error) {
			return c.Engine.Users(ctx, q, page)
		},
		present: each[model.UserQuery](toUser),
	}
	groups := lister[model.GroupQuery, *model.Group, groupResponse]{
		defaultSort: "id",
		props: query.SortProperties{
			"id":   "id",
			"name": "name_",
			"type": "type_",
		},
		fetch: func(ctx context.Context, q *model.GroupQuery, page query.Page) ([]*model.Group, int64, error) {
			return c.Engine.Groups(ctx, q, page)
		},
		present: each[model.GroupQuery](toGroup),
	}

	r.Route("/identity/users", func(r chi.Router) {
		r.Get("/", users.get)
		r.Post("/", c.createUser)
		r.Get("/{id}", c.getUser)
		r.Put("/{id}", c.updateUser)
		r.Delete("/{id}", c.deleteUser)
	})
	r.Route("/identity/groups", func(r chi.Router) {
		r.Get("/", groups.get)
		r.Post("/", c.createGroup)
		r.Get("/{id}", c.getGroup)
		r.Put("/{id}", c.updateGroup)
		r.Delete("/{id}", c.deleteGroup)
		r.Post("/{id}/members", c.addMember)
		r.Delete("/{id}/members/{userId}", c.deleteMember)
	})
}

type userBody struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (c *IdentityController) createUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	u := &model.User{ID: body.ID, FirstName: body.FirstName, LastName: body.LastName, Email: body.Email, Password: body.Password}
	if err := c.Engine.CreateUser(r.Context(), u); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUser(urlsOf(r), u))
}

func (c *IdentityController) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := c.Engine.User(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(urlsOf(r), u))
}

// updateUser changes only the fields present in the body.
func (c *IdentityController) updateUser(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := c.Engine.UpdateUser(r.Context(), param(r, "id"), func(u *model.User) {
		setIfPresent(raw, "firstName", &u.FirstName)
		setIfPresent(raw, "lastName", &u.LastName)
		setIfPresent(raw, "email", &u.Email)
		setIfPresent(raw, "password", &u.Password)
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(urlsOf(r), u))
}

func setIfPresent(raw []byte, key string, dst *string) {
	if res := gjson.GetBytes(raw, key); res.Exists() {
		*dst = ""
		if res.Type != gjson.Null {
			*dst = res.String()
		}
	}
}

func (c *IdentityController) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteUser(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

type groupBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *IdentityController) createGroup(w http.ResponseWriter, r *http.Request) {
	var body groupBody
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	g := &model.Group{ID: body.ID, Name: body.Name, Type: body.Type}
	if err := c.Engine.CreateGroup(r.Context(), g); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroup(urlsOf(r), g))
}

func (c *IdentityController) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := c.Engine.Group(r.Context(), param(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroup(urlsOf(r), g))
}

func (c *IdentityController) updateGroup(w http.ResponseWriter, r *http.Request) {
	raw, err := readRaw(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	g, err := c.Engine.UpdateGroup(r.Context(), param(r, "id"), func(g *model.Group) {
		setIfPresent(raw, "name", &g.Name)
		setIfPresent(raw, "type", &g.Type)
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroup(urlsOf(r), g))
}

func (c *IdentityController) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteGroup(r.Context(), param(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}

func (c *IdentityController) addMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := readJSON(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := c.Engine.AddMembership(r.Context(), param(r, "id"), body.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembership(urlsOf(r), m))
}

func (c *IdentityController) deleteMember(w http.ResponseWriter, r *http.Request) {
	if err := c.Engine.DeleteMembership(r.Context(), param(r, "id"), param(r, "userId")); err != nil {
		writeErr(w, r, err)
		return
	}
	noContent(w)
}
