package fabman

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "secret", PageSize: pageSize, RateLimit: 1000, RateBurst: 100})
}

func TestFetchPackagesPaginates(t *testing.T) {
	all := make([]Package, 5)
	for i := range all {
		all[i] = Package{ID: int64(i + 1), Name: fmt.Sprintf("P%d", i+1)}
	}
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/packages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		// 服务端返回小写头，客户端应大小写不敏感
		w.Header()["x-total-count"] = []string{strconv.Itoa(len(all))}
		_ = json.NewEncoder(w).Encode(all[offset:end])
	}, 2)

	pkgs, err := c.FetchPackages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, all, pkgs)
	assert.Equal(t, 3, calls)
}

func TestFetchAllWithoutTotalStopsAfterFirstPage(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[{"id":1,"name":"A"}]`))
	}, 1)
	pkgs, err := c.FetchPackages(context.Background())
	require.NoError(t, err)
	assert.Len(t, pkgs, 1)
	assert.Equal(t, 1, calls)
}

func TestBadRequestMessageSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"firstName is too long"}`))
	}, 10)

	_, err := c.CreateMember(context.Background(), map[string]interface{}{"firstName": "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "firstName is too long", apiErr.Message)
	assert.Contains(t, err.Error(), "POST")
	assert.Contains(t, err.Error(), "/members")
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "firstName is too long")
	assert.False(t, IsDuplicateEmail(err))
}

func TestDuplicateEmailTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"data":{"duplicateEmailAddress":true}}`))
	}, 10)

	_, err := c.CreateMember(context.Background(), map[string]interface{}{"emailAddress": "a@b.c"})
	require.Error(t, err)
	assert.True(t, IsDuplicateEmail(err))
}

func TestHasTag(t *testing.T) {
	e := &APIError{StatusCode: 422, Body: []byte(`{"data":{"a":true,"b":false,"c":"yes"}}`)}
	assert.True(t, e.HasTag(422, "a"))
	assert.False(t, e.HasTag(422, "b"))
	assert.True(t, e.HasTag(422, "c"))
	assert.False(t, e.HasTag(422, "missing"))
	assert.False(t, e.HasTag(400, "a"))

	garbage := &APIError{StatusCode: 422, Body: []byte(`not json`)}
	assert.False(t, garbage.HasTag(422, "a"))
}

func TestCreateMemberAndPackage(t *testing.T) {
	var got MemberPackage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/members":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"id":55,"account":3}`))
		case "/members/55/packages":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, 10)

	ctx := context.Background()
	m, err := c.CreateMember(ctx, map[string]interface{}{"firstName": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, int64(55), m.ID)

	err = c.CreateMemberPackage(ctx, m.ID, MemberPackage{Package: 7, FromDate: "2024-01-05", Notes: "n"})
	require.NoError(t, err)
	assert.Equal(t, MemberPackage{Package: 7, FromDate: "2024-01-05", Notes: "n"}, got)
}

func TestFetchMeAndSpaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/me":
			_, _ = w.Write([]byte(`{"id":1,"account":3}`))
		case "/spaces":
			_, _ = w.Write([]byte(`[{"id":9,"name":"Lab","timezone":"Europe/Vienna"}]`))
		}
	}, 10)

	me, err := c.FetchMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), me.Account)

	spaces, err := c.FetchSpaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Space{{ID: 9, Name: "Lab", Timezone: "Europe/Vienna"}}, spaces)
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, 10)
	_, err := c.FetchMe(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Empty(t, apiErr.Message)
}

func TestPackageDisplayName(t *testing.T) {
	assert.Equal(t, "Laser Pro (ID: 12)", Package{ID: 12, Name: "Laser Pro"}.DisplayName())
}
