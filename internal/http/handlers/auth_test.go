package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/domain/user"
	"github.com/geocoder89/fintechindex/internal/http/handlers"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/repo/memory"
	"github.com/geocoder89/fintechindex/internal/security"
	"github.com/gin-gonic/gin"
)

func setupAuth(t *testing.T) (*gin.Engine, *memory.UsersRepo, *fakeNotifier) {
	t.Helper()

	users := memory.NewUsersRepo()
	notify := &fakeNotifier{}
	h := handlers.NewAuthHandler(users, testJWT, notify)

	r := newEngine()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", h.Me)
	r.GET("/auth/users", h.ListUsers)
	r.PATCH("/auth/users/:id/verify", h.VerifyUser)
	r.PUT("/auth/users/:id", h.UpdateUser)
	r.DELETE("/auth/users/:id", h.DeleteUser)

	return r, users, notify
}

func seedUser(t *testing.T, users *memory.UsersRepo, email, password, role string, verified bool) user.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	u := user.NewFromRegisterRequest(user.RegisterRequest{Email: email, Name: "Test", Role: role}, hash)
	u.IsVerified = verified

	u, err = users.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestRegister(t *testing.T) {
	r, _, notify := setupAuth(t)

	body := map[string]any{"email": "Ada@Example.com", "password": "secret1", "name": "Ada", "role": "editor"}

	w := doJSON(t, r, http.MethodPost, "/auth/register", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	resp := decode[struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}](t, w)

	if resp.User.Email != "ada@example.com" || resp.User.IsVerified || resp.User.Role != auth.RoleEditor {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if resp.Message == "" {
		t.Fatalf("expected a message")
	}

	if kinds := notify.kinds(); len(kinds) != 1 || kinds[0] != notifications.KindUserRegistered {
		t.Fatalf("unexpected notifications %v", kinds)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/register", "", body)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "email_taken" {
		t.Fatalf("duplicate email: status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	r, users, _ := setupAuth(t)

	w := doJSON(t, r, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "root@example.com", "password": "secret1", "name": "Root", "role": "admin",
	})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	if _, err := users.GetByEmail(context.Background(), "root@example.com"); err == nil {
		t.Fatalf("no user may be created for an admin self-registration")
	}
}

func TestLogin(t *testing.T) {
	r, users, _ := setupAuth(t)

	seedUser(t, users, "pending@example.com", "secret1", auth.RoleViewer, false)
	seedUser(t, users, "ok@example.com", "secret1", auth.RoleEditor, true)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		code     string
	}{
		{"unknown email", "nobody@example.com", "secret1", http.StatusUnauthorized, "invalid_credentials"},
		{"wrong password", "ok@example.com", "nope!!", http.StatusUnauthorized, "invalid_credentials"},
		{"wrong password on unverified", "pending@example.com", "nope!!", http.StatusUnauthorized, "invalid_credentials"},
		{"unverified", "pending@example.com", "secret1", http.StatusForbidden, "account_not_verified"},
		{"verified", "OK@example.com", "secret1", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": tt.email, "password": tt.password})

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			if tt.code != "" {
				if got := errorCode(t, w); got != tt.code {
					t.Fatalf("code = %q, want %q", got, tt.code)
				}
				return
			}

			resp := decode[struct {
				Token string    `json:"token"`
				User  user.User `json:"user"`
			}](t, w)

			claims, err := testJWT.Verify(resp.Token)
			if err != nil {
				t.Fatalf("issued token does not verify: %v", err)
			}
			if claims.Email != "ok@example.com" || claims.Role != auth.RoleEditor {
				t.Fatalf("unexpected claims %+v", claims)
			}
		})
	}
}

func TestVerifyUserThenLogin(t *testing.T) {
	r, users, notify := setupAuth(t)

	u := seedUser(t, users, "new@example.com", "secret1", auth.RoleViewer, false)

	w := doJSON(t, r, http.MethodPatch, "/auth/users/"+u.ID+"/verify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d body=%s", w.Code, w.Body.String())
	}

	if kinds := notify.kinds(); len(kinds) != 1 || kinds[0] != notifications.KindUserApproved {
		t.Fatalf("unexpected notifications %v", kinds)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login", "", map[string]string{"email": "new@example.com", "password": "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login after verify: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPatch, "/auth/users/missing/verify", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("verify unknown user: status = %d, want 404", w.Code)
	}
}

func TestMe(t *testing.T) {
	r, users, _ := setupAuth(t)

	u := seedUser(t, users, "me@example.com", "secret1", auth.RoleEditor, true)

	w := doJSON(t, r, http.MethodGet, "/auth/me", tokenFor(t, u.ID, u.Email, u.Role), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[user.User](t, w); got.ID != u.ID {
		t.Fatalf("got user %q, want %q", got.ID, u.ID)
	}

	w = doJSON(t, r, http.MethodGet, "/auth/me", tokenFor(t, "gone", "gone@example.com", auth.RoleViewer), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted account: status = %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/auth/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", w.Code)
	}
}

func TestListUsersFilters(t *testing.T) {
	r, users, _ := setupAuth(t)

	seedUser(t, users, "a@example.com", "secret1", auth.RoleEditor, true)
	seedUser(t, users, "b@example.com", "secret1", auth.RoleViewer, false)

	w := doJSON(t, r, http.MethodGet, "/auth/users?verified=false", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	resp := decode[struct {
		Count int         `json:"count"`
		Users []user.User `json:"users"`
	}](t, w)
	if resp.Count != 1 || resp.Users[0].Email != "b@example.com" {
		t.Fatalf("unexpected result %+v", resp)
	}

	for _, q := range []string{"verified=maybe", "role=root"} {
		w = doJSON(t, r, http.MethodGet, "/auth/users?"+q, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestUpdateUser(t *testing.T) {
	r, users, _ := setupAuth(t)

	u := seedUser(t, users, "edit@example.com", "secret1", auth.RoleViewer, true)

	w := doJSON(t, r, http.MethodPut, "/auth/users/"+u.ID, "", map[string]any{"role": "editor", "organization": "Acme"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	got := decode[user.User](t, w)
	if got.Role != auth.RoleEditor || got.Organization != "Acme" || got.Email != u.Email {
		t.Fatalf("unexpected user %+v", got)
	}

	w = doJSON(t, r, http.MethodPut, "/auth/users/"+u.ID, "", map[string]any{"role": "root"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid role: status = %d, want 400", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	r, users, _ := setupAuth(t)

	admin := seedUser(t, users, "admin@example.com", "secret1", auth.RoleViewer, true)
	other := seedUser(t, users, "other@example.com", "secret1", auth.RoleViewer, true)
	adminToken := tokenFor(t, admin.ID, admin.Email, auth.RoleAdmin)

	w := doJSON(t, r, http.MethodDelete, "/auth/users/"+admin.ID, adminToken, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("self delete: status = %d, want 400", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/auth/users/"+other.ID, adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}

	resp := decode[struct {
		DeletedUser user.User `json:"deletedUser"`
	}](t, w)
	if resp.DeletedUser.ID != other.ID {
		t.Fatalf("unexpected deleted user %+v", resp.DeletedUser)
	}

	w = doJSON(t, r, http.MethodDelete, "/auth/users/"+other.ID, adminToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", w.Code)
	}
}
