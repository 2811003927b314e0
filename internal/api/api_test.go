package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/izgubljeno/internal/db"
	"github.com/erazemk/izgubljeno/internal/items"
	"github.com/erazemk/izgubljeno/internal/model"
	"github.com/erazemk/izgubljeno/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

type testEnv struct {
	server *httptest.Server
	orgID  string
	tokens map[string]string
}

// setupTestServer starts the API on a fresh database with a superAdmin, an
// organization holding an admin and two members, and one unaffiliated user.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	router := NewRouter(Config{
		DB:        database,
		Items:     items.New(store.NewSQLite(database)),
		JWTSecret: testJWTSecret,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	org, err := store.CreateOrganization(ctx, database, "Campus")
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	accounts := []struct {
		email, role, org string
	}{
		{"root@example.com", model.RoleSuperAdmin, ""},
		{"admin@example.com", model.RoleAdmin, org.ID},
		{"alice@example.com", model.RoleUser, org.ID},
		{"bob@example.com", model.RoleUser, org.ID},
		{"solo@example.com", model.RoleUser, ""},
	}

	env := &testEnv{server: server, orgID: org.ID, tokens: map[string]string{}}
	for _, a := range accounts {
		_, err := store.CreateUser(ctx, database, a.email, a.email, string(hash), a.role, a.org)
		require.NoError(t, err)
		env.tokens[a.email] = login(t, server, a.email, testPassword)
	}
	return env
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "login as %s", email)

	var out loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

// do sends an authenticated JSON request as the given user and decodes the
// response into out when it is non-nil.
func (e *testEnv) do(t *testing.T, method, path, as string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) createItem(t *testing.T, as string, fields map[string]string) model.Item {
	t.Helper()
	body := map[string]string{
		"title":       "Blue wallet",
		"description": "Leather wallet with a bus pass",
		"category":    model.CategoryAccessory,
		"status":      model.StatusLost,
		"location":    "Library",
	}
	for k, v := range fields {
		body[k] = v
	}
	var item model.Item
	status := e.do(t, "POST", "/api/items", as, body, &item)
	require.Equal(t, http.StatusCreated, status)
	return item
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "wrong"})
	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Emails are matched case-insensitively.
	login(t, env.server, "ALICE@example.com", testPassword)
}

func TestUnauthorizedAccess(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, "GET", "/api/items", "", nil, nil))

	req, _ := http.NewRequest("GET", env.server.URL+"/api/items", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/auth/me", "alice@example.com", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, "POST", "/api/auth/logout", "alice@example.com", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(t, "GET", "/api/auth/me", "alice@example.com", nil, nil))
}

func TestCreateItemValidation(t *testing.T) {
	env := setupTestServer(t)

	var resp validationResponse
	status := env.do(t, "POST", "/api/items", "alice@example.com", map[string]string{
		"title":       "   ",
		"description": "Keys",
		"category":    "Spaceships",
		"status":      model.StatusLost,
		"location":    "Gym",
	}, &resp)

	assert.Equal(t, http.StatusBadRequest, status)
	var fields []string
	for _, f := range resp.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "category"}, fields)
}

func TestCreateItemDefaultsFromActor(t *testing.T) {
	env := setupTestServer(t)

	item := env.createItem(t, "alice@example.com", nil)
	assert.Equal(t, env.orgID, item.OrganizationID)
	assert.Equal(t, "alice@example.com", item.Contact)
	assert.False(t, item.Claimed)
	assert.NotEmpty(t, item.ID)
}

func TestClaimApproveFlow(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "alice@example.com", map[string]string{"status": model.StatusFound})

	// Owners cannot claim their own report.
	assert.Equal(t, http.StatusForbidden,
		env.do(t, "POST", "/api/items/"+item.ID+"/claims", "alice@example.com", nil, nil))

	var claim model.Claim
	status := env.do(t, "POST", "/api/items/"+item.ID+"/claims", "bob@example.com",
		map[string]string{"message": "It has my initials inside"}, &claim)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, model.ClaimPending, claim.Status)

	var got model.Item
	env.do(t, "GET", "/api/items/"+item.ID, "alice@example.com", nil, &got)
	assert.Equal(t, model.StatusClaimed, got.Status)
	assert.True(t, got.Claimed)

	// A second pending claim conflicts.
	assert.Equal(t, http.StatusConflict,
		env.do(t, "POST", "/api/items/"+item.ID+"/claims", "admin@example.com", nil, nil))

	// The claimant cannot approve their own claim.
	assert.Equal(t, http.StatusForbidden,
		env.do(t, "POST", "/api/claims/"+claim.ID+"/approve", "bob@example.com", nil, nil))

	var decided model.Claim
	require.Equal(t, http.StatusOK,
		env.do(t, "POST", "/api/claims/"+claim.ID+"/approve", "admin@example.com", nil, &decided))
	assert.Equal(t, model.ClaimApproved, decided.Status)

	env.do(t, "GET", "/api/items/"+item.ID, "alice@example.com", nil, &got)
	assert.Equal(t, model.StatusResolved, got.Status)
	assert.True(t, got.Claimed)

	// Resolved items are frozen.
	assert.Equal(t, http.StatusConflict,
		env.do(t, "PUT", "/api/items/"+item.ID, "alice@example.com", map[string]string{"title": "Changed"}, nil))
	assert.Equal(t, http.StatusConflict,
		env.do(t, "DELETE", "/api/items/"+item.ID, "alice@example.com", nil, nil))
}

func TestClaimRejectFlow(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "alice@example.com", map[string]string{"status": model.StatusFound})

	var claim model.Claim
	require.Equal(t, http.StatusCreated,
		env.do(t, "POST", "/api/items/"+item.ID+"/claims", "bob@example.com", nil, &claim))

	// The owner and the organization admin both see the claim.
	var claims []model.Claim
	env.do(t, "GET", "/api/items/"+item.ID+"/claims", "alice@example.com", nil, &claims)
	assert.Len(t, claims, 1)
	env.do(t, "GET", "/api/items/"+item.ID+"/claims", "admin@example.com", nil, &claims)
	assert.Len(t, claims, 1)

	require.Equal(t, http.StatusOK,
		env.do(t, "POST", "/api/claims/"+claim.ID+"/reject", "alice@example.com", nil, nil))

	var got model.Item
	env.do(t, "GET", "/api/items/"+item.ID, "alice@example.com", nil, &got)
	assert.Equal(t, model.StatusFound, got.Status)
	assert.False(t, got.Claimed)

	// A decided claim is no longer pending.
	assert.Equal(t, http.StatusNotFound,
		env.do(t, "POST", "/api/claims/"+claim.ID+"/approve", "alice@example.com", nil, nil))
	assert.Equal(t, http.StatusNotFound,
		env.do(t, "POST", "/api/claims/missing/approve", "alice@example.com", nil, nil))
}

func TestUpdateAndDeleteAuthorization(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "alice@example.com", nil)

	title := map[string]string{"title": "Black wallet"}
	assert.Equal(t, http.StatusForbidden, env.do(t, "PUT", "/api/items/"+item.ID, "bob@example.com", title, nil))

	var updated model.Item
	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/items/"+item.ID, "admin@example.com", title, &updated))
	assert.Equal(t, "Black wallet", updated.Title)

	assert.Equal(t, http.StatusConflict,
		env.do(t, "PUT", "/api/items/"+item.ID, "alice@example.com", map[string]string{"status": model.StatusResolved}, nil))

	assert.Equal(t, http.StatusForbidden, env.do(t, "DELETE", "/api/items/"+item.ID, "bob@example.com", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/items/"+item.ID, "alice@example.com", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/items/"+item.ID, "alice@example.com", nil, nil))
}

func TestListItemsQuery(t *testing.T) {
	env := setupTestServer(t)
	env.createItem(t, "alice@example.com", map[string]string{"title": "Umbrella", "description": "Red", "category": model.CategoryOther, "location": "Cafeteria"})
	env.createItem(t, "alice@example.com", map[string]string{"title": "Apple charger", "description": "USB-C", "category": model.CategoryElectronic, "status": model.StatusFound, "location": "Lab"})
	env.createItem(t, "bob@example.com", map[string]string{"title": "Phone", "description": "Has an apple sticker", "category": model.CategoryElectronic, "location": "Lab"})

	var list []model.Item
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/items?q=APPLE&sort=title&order=asc", "alice@example.com", nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Apple charger", list[0].Title)
	assert.Equal(t, "Phone", list[1].Title)

	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/items?category=electronic&status=Found", "bob@example.com", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Apple charger", list[0].Title)

	var locations []string
	require.Equal(t, http.StatusOK, env.do(t, "GET", "/api/locations", "bob@example.com", nil, &locations))
	assert.ElementsMatch(t, []string{"Cafeteria", "Lab"}, locations)

	var verr validationResponse
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/items?sort=price", "alice@example.com", nil, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "sortBy", verr.Fields[0].Field)
}

func TestOrganizationScoping(t *testing.T) {
	env := setupTestServer(t)
	scoped := env.createItem(t, "alice@example.com", map[string]string{"title": "Campus keys"})
	open := env.createItem(t, "solo@example.com", map[string]string{"title": "Street keys"})
	assert.Empty(t, open.OrganizationID)

	var list []model.Item
	env.do(t, "GET", "/api/items", "solo@example.com", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	env.do(t, "GET", "/api/items", "bob@example.com", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, scoped.ID, list[0].ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/items/"+scoped.ID, "solo@example.com", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/items/"+scoped.ID+"/claims", "solo@example.com", nil, nil))

	// Members may not report into another organization.
	assert.Equal(t, http.StatusForbidden, env.do(t, "POST", "/api/items", "solo@example.com", map[string]string{
		"title": "x", "description": "y", "category": model.CategoryOther,
		"status": model.StatusLost, "location": "z", "organizationId": env.orgID,
	}, nil))

	env.do(t, "GET", "/api/items", "root@example.com", nil, &list)
	assert.Len(t, list, 2)
	env.do(t, "GET", "/api/items?org="+env.orgID, "root@example.com", nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, scoped.ID, list[0].ID)
}

func TestUserManagementRequiresSuperAdmin(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusForbidden, env.do(t, "GET", "/api/users", "admin@example.com", nil, nil))

	var created model.User
	status := env.do(t, "POST", "/api/users", "root@example.com", map[string]string{
		"name":           "Dana",
		"email":          "dana@example.com",
		"password":       "longenough",
		"role":           model.RoleAdmin,
		"organizationId": env.orgID,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, env.orgID, created.OrganizationID)
	assert.Empty(t, created.PasswordHash)

	assert.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/users", "root@example.com", map[string]string{
		"email": "dana@example.com", "password": "longenough", "role": model.RoleUser,
	}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/users", "root@example.com", map[string]string{
		"email": "eve@example.com", "password": "short", "role": model.RoleUser,
	}, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/users", "root@example.com", map[string]string{
		"email": "eve@example.com", "password": "longenough", "role": model.RoleUser, "organizationId": "nope",
	}, nil))

	login(t, env.server, "dana@example.com", "longenough")

	var users []model.User
	env.do(t, "GET", "/api/users?org="+env.orgID, "root@example.com", nil, &users)
	assert.Len(t, users, 4)

	assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/users/"+created.ID, "root@example.com", nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/users/"+created.ID, "root@example.com", nil, nil))
}

func TestOrganizationsAPI(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusForbidden,
		env.do(t, "POST", "/api/organizations", "admin@example.com", map[string]string{"name": "Other"}, nil))

	var org model.Organization
	require.Equal(t, http.StatusCreated,
		env.do(t, "POST", "/api/organizations", "root@example.com", map[string]string{"name": "Library"}, &org))

	var orgs []model.Organization
	env.do(t, "GET", "/api/organizations", "alice@example.com", nil, &orgs)
	assert.Len(t, orgs, 2)

	assert.Equal(t, http.StatusConflict, env.do(t, "DELETE", "/api/organizations/"+env.orgID, "root@example.com", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/organizations/"+org.ID, "root@example.com", nil, nil))
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, "PUT", "/api/auth/password", "bob@example.com",
		changePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpassword"}, nil))
	assert.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/auth/password", "bob@example.com",
		changePasswordRequest{CurrentPassword: testPassword, NewPassword: "newpassword"}, nil))

	login(t, env.server, "bob@example.com", "newpassword")
}

func TestItemImageUpload(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "alice@example.com", nil)

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := range 40 {
		for y := range 20 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	upload := func(as string) *http.Response {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("image", "wallet.png")
		require.NoError(t, err)
		part.Write(pngData.Bytes())
		require.NoError(t, mw.Close())

		req, _ := http.NewRequest("PUT", env.server.URL+"/api/items/"+item.ID+"/image", &body)
		req.Header.Set("Authorization", "Bearer "+env.tokens[as])
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := upload("bob@example.com")
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = upload("alice@example.com")
	var updated model.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/api/items/"+item.ID+"/image", updated.ImageURL)

	req, _ := http.NewRequest("GET", env.server.URL+updated.ImageURL, nil)
	req.Header.Set("Authorization", "Bearer "+env.tokens["bob@example.com"])
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
}

func TestImageUploadRefusedOnResolvedItem(t *testing.T) {
	env := setupTestServer(t)
	item := env.createItem(t, "alice@example.com", nil)

	var claim model.Claim
	require.Equal(t, http.StatusCreated,
		env.do(t, "POST", "/api/items/"+item.ID+"/claims", "bob@example.com", nil, &claim))
	require.Equal(t, http.StatusOK,
		env.do(t, "POST", "/api/claims/"+claim.ID+"/approve", "alice@example.com", nil, nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "wallet.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("PUT", env.server.URL+"/api/items/"+item.ID+"/image", &body)
	req.Header.Set("Authorization", "Bearer "+env.tokens["alice@example.com"])
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Nothing was stored for the item.
	assert.Equal(t, http.StatusNotFound,
		env.do(t, "GET", "/api/items/"+item.ID+"/image", "alice@example.com", nil, nil))
}
