package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"elstudio.app/internal/api"
	"elstudio.app/internal/audit"
	"elstudio.app/internal/session"
)

// employeesView backs both the active and inactive listing tables.
type employeesView struct {
	Users      []api.User
	DateFormat string
}

type roleOption struct {
	ID      int
	Name    string
	Checked bool
}

// employeeFormView backs the shared create/edit form template.
type employeeFormView struct {
	Heading      string
	Action       string
	Submit       string
	WithPassword bool
	FirstName    string
	LastName     string
	Email        string
	BirthDate    string
	Roles        []roleOption
}

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	users, err := s.api.ListUsers(r.Context(), sess.Token)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "list users")
		return
	}

	var viewer *api.Profile
	if profile, err := s.api.Me(r.Context(), sess.Token); err == nil {
		viewer = &profile
	}
	view := employeesView{DateFormat: "YYYY-MM-DD"}
	if viewer != nil && viewer.DateFormat != "" {
		view.DateFormat = viewer.DateFormat
	}
	for _, u := range users {
		if u.IsActive {
			view.Users = append(view.Users, u)
		}
	}
	s.render(w, r, http.StatusOK, "employees", viewData{Title: "Employees", Active: "employees", Viewer: viewer, Data: view})
}

func (s *Server) handleInactiveUsers(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	users, err := s.api.ListUsers(r.Context(), sess.Token)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "list users")
		return
	}

	var view employeesView
	for _, u := range users {
		if !u.IsActive {
			view.Users = append(view.Users, u)
		}
	}
	s.render(w, r, http.StatusOK, "inactive", viewData{Title: "Inactive users", Active: "inactive", Data: view})
}

func (s *Server) handleEmployeeCreateForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	roles, err := s.roleOptions(r, sess.Token, nil)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "list roles")
		return
	}
	s.render(w, r, http.StatusOK, "employee_form", viewData{
		Title:  "Add employee",
		Active: "employees",
		Data:   createFormView(roles),
	})
}

func (s *Server) handleEmployeeCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	if !s.checkCSRF(r) {
		roles, _ := s.roleOptions(r, sess.Token, nil)
		s.render(w, r, http.StatusForbidden, "employee_form", viewData{
			Title: "Add employee", Active: "employees", Error: "Invalid form token, please try again.",
			Data: createFormView(roles),
		})
		return
	}

	create := api.CreateUser{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		BirthDate: r.PostFormValue("birth_date"),
		Password:  r.PostFormValue("password"),
		Roles:     r.PostForm["roles"],
	}
	if err := s.api.Register(r.Context(), sess.Token, create); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		roles, _ := s.roleOptions(r, sess.Token, create.Roles)
		form := createFormView(roles)
		form.FirstName, form.LastName = create.FirstName, create.LastName
		form.Email, form.BirthDate = create.Email, create.BirthDate
		s.render(w, r, http.StatusBadRequest, "employee_form", viewData{
			Title: "Add employee", Active: "employees",
			Error: validationMessage(err, "Could not create the employee."),
			Data:  form,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.created", map[string]any{"email": create.Email})
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

func (s *Server) handleEmployeeEditForm(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := s.api.GetUser(r.Context(), sess.Token, id)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "load user")
		return
	}
	roles, err := s.roleOptions(r, sess.Token, roleNames(user.Roles))
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "list roles")
		return
	}
	s.render(w, r, http.StatusOK, "employee_form", viewData{
		Title:  "Edit employee",
		Active: "employees",
		Data:   editFormView(user, roles),
	})
}

func (s *Server) handleEmployeeUpdate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/employees/"+strconv.Itoa(id), http.StatusSeeOther)
		return
	}

	upd := api.UpdateUser{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		BirthDate: r.PostFormValue("birth_date"),
		Password:  r.PostFormValue("password"),
		Roles:     r.PostForm["roles"],
	}
	if err := s.api.UpdateUser(r.Context(), sess.Token, id, upd); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		roles, _ := s.roleOptions(r, sess.Token, upd.Roles)
		form := employeeFormView{
			Heading: "Edit employee", Submit: "Save changes",
			Action:    "/employees/" + strconv.Itoa(id),
			FirstName: upd.FirstName, LastName: upd.LastName,
			Email: upd.Email, BirthDate: upd.BirthDate,
			Roles: roles,
		}
		s.render(w, r, http.StatusBadRequest, "employee_form", viewData{
			Title: "Edit employee", Active: "employees",
			Error: validationMessage(err, "Could not save the employee."),
			Data:  form,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.updated", map[string]any{"user_id": id})
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

// handleEmployeeDeactivate flips is_active off while keeping everything else
// as is, so the account moves to the inactive list instead of disappearing.
func (s *Server) handleEmployeeDeactivate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/employees", http.StatusSeeOther)
		return
	}

	user, err := s.api.GetUser(r.Context(), sess.Token, id)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "load user")
		return
	}
	inactive := false
	upd := api.UpdateUser{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		BirthDate: user.BirthDate,
		IsActive:  &inactive,
		Roles:     roleNames(user.Roles),
	}
	if err := s.api.UpdateUser(r.Context(), sess.Token, id, upd); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "deactivate user")
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.deactivated", map[string]any{"user_id": id})
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

func (s *Server) handleEmployeeReactivate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/employees/inactive", http.StatusSeeOther)
		return
	}

	if err := s.api.ReactivateUser(r.Context(), sess.Token, id); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "reactivate user")
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.reactivated", map[string]any{"user_id": id})
	http.Redirect(w, r, "/employees/inactive", http.StatusSeeOther)
}

func (s *Server) handleEmployeeDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/employees/inactive", http.StatusSeeOther)
		return
	}

	if err := s.api.DeleteUser(r.Context(), sess.Token, id); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "delete user")
		return
	}
	_ = audit.LogEvent(r.Context(), "employee.deleted", map[string]any{"user_id": id})
	http.Redirect(w, r, "/employees/inactive", http.StatusSeeOther)
}

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	roles, err := s.api.ListRoles(r.Context(), sess.Token)
	if err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		s.renderError(w, r, "list roles")
		return
	}
	s.render(w, r, http.StatusOK, "roles", viewData{Title: "Roles", Active: "roles", Data: roles})
}

func (s *Server) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/roles", http.StatusSeeOther)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if err := s.api.CreateRole(r.Context(), sess.Token, name); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		roles, _ := s.api.ListRoles(r.Context(), sess.Token)
		s.render(w, r, http.StatusBadRequest, "roles", viewData{
			Title: "Roles", Active: "roles",
			Error: validationMessage(err, "Could not create the role."),
			Data:  roles,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "role.created", map[string]any{"name": name})
	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

func (s *Server) handleRoleUpdate(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/roles", http.StatusSeeOther)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if err := s.api.UpdateRole(r.Context(), sess.Token, id, name); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		roles, _ := s.api.ListRoles(r.Context(), sess.Token)
		s.render(w, r, http.StatusBadRequest, "roles", viewData{
			Title: "Roles", Active: "roles",
			Error: validationMessage(err, "Could not rename the role."),
			Data:  roles,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "role.renamed", map[string]any{"role_id": id, "name": name})
	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

func (s *Server) handleRoleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/roles", http.StatusSeeOther)
		return
	}

	if err := s.api.DeleteRole(r.Context(), sess.Token, id); err != nil {
		if s.recoverUnauthorized(w, r, err) {
			return
		}
		roles, _ := s.api.ListRoles(r.Context(), sess.Token)
		s.render(w, r, http.StatusBadRequest, "roles", viewData{
			Title: "Roles", Active: "roles",
			Error: validationMessage(err, "Could not delete the role."),
			Data:  roles,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "role.deleted", map[string]any{"role_id": id})
	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

// pathID parses the {id} route parameter, answering 404 for garbage.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

// roleOptions fetches the role catalog and marks the given names checked.
func (s *Server) roleOptions(r *http.Request, token string, selected []string) ([]roleOption, error) {
	roles, err := s.api.ListRoles(r.Context(), token)
	if err != nil {
		return nil, err
	}
	chosen := make(map[string]bool, len(selected))
	for _, name := range selected {
		chosen[strings.ToLower(name)] = true
	}
	opts := make([]roleOption, 0, len(roles))
	for _, role := range roles {
		opts = append(opts, roleOption{
			ID:      role.ID,
			Name:    role.Name,
			Checked: chosen[strings.ToLower(role.Name)],
		})
	}
	return opts, nil
}

func roleNames(roles []api.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

func createFormView(roles []roleOption) employeeFormView {
	return employeeFormView{
		Heading:      "Add employee",
		Action:       "/employees/new",
		Submit:       "Create employee",
		WithPassword: true,
		Roles:        roles,
	}
}

func editFormView(user api.User, roles []roleOption) employeeFormView {
	return employeeFormView{
		Heading:   "Edit employee",
		Action:    "/employees/" + strconv.Itoa(user.ID),
		Submit:    "Save changes",
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		BirthDate: user.BirthDate,
		Roles:     roles,
	}
}
