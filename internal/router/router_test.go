package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/shop/internal/auth"
	"github.com/patric-chuzhbe/shop/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shop/internal/ipchecker"
	"github.com/patric-chuzhbe/shop/internal/logger"
	"github.com/patric-chuzhbe/shop/internal/metrics"
	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/passwordhasher"
	shopservice "github.com/patric-chuzhbe/shop/internal/service"
)

var testSigningKey = []byte("router-test-signing-key")

type testEnv struct {
	srv     *httptest.Server
	svc     *shopservice.Service
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T, optionsProto ...InitOption) *testEnv {
	t.Helper()

	err := logger.Init("debug")
	require.NoError(t, err)

	db, err := memorystorage.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		err := db.Close()
		require.NoError(t, err)
	})

	tokens, err := auth.NewTokenService(testSigningKey)
	require.NoError(t, err)

	svc := shopservice.New(db, passwordhasher.New(passwordhasher.WithCost(bcrypt.MinCost)), tokens)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	checker, err := ipchecker.New("127.0.0.0/8")
	require.NoError(t, err)

	handler := New(
		svc,
		auth.New(
			tokens,
			auth.WithFailureRecorder(collector),
			auth.WithErrorResponder(WriteError),
		),
		collector,
		checker,
		optionsProto...,
	)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testEnv{
		srv:     srv,
		svc:     svc,
		metrics: collector,
	}
}

func (e *testEnv) url(path string) string {
	return e.srv.URL + path
}

func (e *testEnv) register(t *testing.T, name, email, password string) models.PublicUser {
	t.Helper()
	var result models.RegisterResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":     name,
			"surname":  "Kowalski",
			"email":    email,
			"password": password,
		}).
		SetResult(&result).
		Post(e.url("/register"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	require.True(t, result.Success)
	return result.User
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	var result models.LoginResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.LoginRequest{Email: email, Password: password}).
		SetResult(&result).
		Post(e.url("/login"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
	return result.Token
}

func (e *testEnv) createProduct(t *testing.T, name string, price float64) models.Product {
	t.Helper()
	product, err := e.svc.CreateProduct(context.Background(), &models.CreateProductRequest{Name: name, Price: price})
	require.NoError(t, err)
	return *product
}

func TestRegisterLoginAndGetUser(t *testing.T) {
	env := newTestEnv(t)

	created := env.register(t, "Anna", "anna@example.com", "secret1")
	assert.Positive(t, created.ID)
	assert.Equal(t, "anna@example.com", created.Email)

	token := env.login(t, "anna@example.com", "secret1")
	require.NotEmpty(t, token)

	var result models.UserDataResponse
	resp, err := resty.New().R().
		SetAuthToken(token).
		SetResult(&result).
		Get(env.url("/user"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.True(t, result.Success)
	assert.Equal(t, models.UserData{Name: "Anna", Surname: "Kowalski", Email: "anna@example.com"}, result.UserData)
	assert.NotContains(t, resp.String(), "password")
}

func TestRegisterFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Anna", "anna@example.com", "secret1")

	testCases := []struct {
		name         string
		body         string
		expectedCode int
		expectedErr  string
	}{
		{
			name:         "duplicate email",
			body:         `{"name":"B","surname":"C","email":"anna@example.com","password":"x"}`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  "DuplicateEmail",
		},
		{
			name:         "missing password",
			body:         `{"name":"B","surname":"C","email":"b@example.com"}`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  "InvalidRequest",
		},
		{
			name:         "not json",
			body:         `name=B`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  "InvalidRequest",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errResp models.ErrorResponse
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				SetError(&errResp).
				Post(env.url("/register"))
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
			assert.False(t, errResp.Success)
			assert.Equal(t, testCase.expectedErr, errResp.Error)
		})
	}
}

func TestRegisterWithProfileThenUserInfo(t *testing.T) {
	env := newTestEnv(t)

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{
			"name": "Jan",
			"surname": "Nowak",
			"email": "jan@example.com",
			"password": "pw",
			"kraj": "Polska",
			"miasto": "Gdańsk",
			"ulica": "Długa",
			"nrdomu": "7",
			"telefon": "500600700"
		}`).
		Post(env.url("/register"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())

	token := env.login(t, "jan@example.com", "pw")

	var result models.UserInfoResponse
	resp, err = resty.New().R().
		SetAuthToken(token).
		SetResult(&result).
		Get(env.url("/user-info"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "Gdańsk", result.UserInfo.City)
	assert.Equal(t, "jan@example.com", result.UserInfo.Email)
	assert.Contains(t, resp.String(), `"miasto":"Gdańsk"`)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Anna", "anna@example.com", "secret1")

	testCases := []struct {
		name        string
		email       string
		password    string
		expectedErr string
	}{
		{name: "wrong password", email: "anna@example.com", password: "nope", expectedErr: "InvalidPassword"},
		{name: "unknown email", email: "ghost@example.com", password: "secret1", expectedErr: "UserNotFound"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var errResp models.ErrorResponse
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(models.LoginRequest{Email: testCase.email, Password: testCase.password}).
				SetError(&errResp).
				Post(env.url("/login"))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
			assert.Equal(t, testCase.expectedErr, errResp.Error)
		})
	}
}

func tamperAt(token string, index int) string {
	altered := []byte(token)
	if altered[index] == 'A' {
		altered[index] = 'B'
	} else {
		altered[index] = 'A'
	}
	return string(altered)
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, "Anna", "anna@example.com", "secret1")
	validToken := env.login(t, "anna@example.com", "secret1")

	pastTokens, err := auth.NewTokenService(testSigningKey, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	require.NoError(t, err)
	expiredToken, err := pastTokens.Issue(created.ID, created.Name)
	require.NoError(t, err)

	foreignTokens, err := auth.NewTokenService([]byte("some-other-key"))
	require.NoError(t, err)
	foreignToken, err := foreignTokens.Issue(created.ID, created.Name)
	require.NoError(t, err)

	testCases := []struct {
		name        string
		header      string
		expectedErr string
	}{
		{name: "no header", header: "", expectedErr: "NoToken"},
		{name: "not bearer", header: "Basic " + validToken, expectedErr: "NoToken"},
		{name: "malformed", header: "Bearer not-a-token", expectedErr: "InvalidToken"},
		{name: "expired", header: "Bearer " + expiredToken, expectedErr: "InvalidToken"},
		{name: "tampered header", header: "Bearer " + tamperAt(validToken, 0), expectedErr: "InvalidToken"},
		{name: "tampered payload", header: "Bearer " + tamperAt(validToken, strings.Index(validToken, ".")+3), expectedErr: "InvalidToken"},
		{name: "tampered signature", header: "Bearer " + tamperAt(validToken, strings.LastIndex(validToken, ".")+3), expectedErr: "InvalidToken"},
		{name: "wrong secret", header: "Bearer " + foreignToken, expectedErr: "InvalidToken"},
	}

	for _, testCase := range testCases {
		for _, route := range []struct{ method, path string }{
			{http.MethodGet, "/user"},
			{http.MethodGet, "/user-info"},
			{http.MethodPut, "/user-info"},
			{http.MethodPost, "/cart"},
		} {
			t.Run(fmt.Sprintf("%s %s %s", testCase.name, route.method, route.path), func(t *testing.T) {
				var errResp models.ErrorResponse
				req := resty.New().R().SetError(&errResp)
				if testCase.header != "" {
					req.SetHeader("Authorization", testCase.header)
				}
				resp, err := req.Execute(route.method, env.url(route.path))
				require.NoError(t, err)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
				assert.Equal(t, testCase.expectedErr, errResp.Error)
			})
		}
	}
}

func TestUserInfoLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Anna", "anna@example.com", "secret1")
	token := env.login(t, "anna@example.com", "secret1")

	var errResp models.ErrorResponse
	resp, err := resty.New().R().
		SetAuthToken(token).
		SetError(&errResp).
		Get(env.url("/user-info"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode(), "an account without a profile has no user info")
	assert.Equal(t, "NotFound", errResp.Error)

	for _, city := range []string{"Kraków", "Łódź"} {
		resp, err = resty.New().R().
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"kraj": "Polska", "miasto": city}).
			Put(env.url("/user-info"))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
		assert.JSONEq(t, `{"success":true}`, resp.String())
	}

	var result models.UserInfoResponse
	resp, err = resty.New().R().
		SetAuthToken(token).
		SetResult(&result).
		Get(env.url("/user-info"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "Łódź", result.UserInfo.City)
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, "Anna", "anna@example.com", "secret1")
	token := env.login(t, "anna@example.com", "secret1")
	product := env.createProduct(t, "Kubek", 19.99)

	for expectedQuantity := 1; expectedQuantity <= 2; expectedQuantity++ {
		var result models.AddToCartResponse
		resp, err := resty.New().R().
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetBody(models.AddToCartRequest{ProductID: product.ID}).
			SetResult(&result).
			Post(env.url("/cart"))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
		assert.Equal(t, expectedQuantity, result.Product.Quantity)
		assert.Equal(t, created.ID, result.Product.UserID)
	}

	var items []models.CartItem
	resp, err := resty.New().R().
		SetResult(&items).
		Get(env.url(fmt.Sprintf("/cart/%d", created.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	require.Len(t, items, 1)
	assert.Equal(t, "Kubek", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)

	var errResp models.ErrorResponse
	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.UpdateCartQuantityRequest{Quantity: 0}).
		SetError(&errResp).
		Put(env.url(fmt.Sprintf("/cart/%d/%d", created.ID, product.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "InvalidQuantity", errResp.Error)

	var updated models.UpdateCartQuantityResponse
	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.UpdateCartQuantityRequest{Quantity: 5}).
		SetResult(&updated).
		Put(env.url(fmt.Sprintf("/cart/%d/%d", created.ID, product.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, 5, updated.UpdatedItem.Quantity)

	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.UpdateCartQuantityRequest{Quantity: 5}).
		SetError(&errResp).
		Put(env.url(fmt.Sprintf("/cart/%d/%d", created.ID, product.ID+100)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "NotFound", errResp.Error)

	for i := 0; i < 2; i++ {
		resp, err = resty.New().R().
			Delete(env.url(fmt.Sprintf("/cart/%d/%d", created.ID, product.ID)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode(), "removal is idempotent")
	}

	resp, err = resty.New().R().
		Get(env.url(fmt.Sprintf("/cart/%d", created.ID)))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, resp.String())
}

func TestCartAddUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Anna", "anna@example.com", "secret1")
	token := env.login(t, "anna@example.com", "secret1")

	var errResp models.ErrorResponse
	resp, err := resty.New().R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(models.AddToCartRequest{ProductID: 404}).
		SetError(&errResp).
		Post(env.url("/cart"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "ProductNotFound", errResp.Error)
}

func TestCartRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, WithCartRoutesRequireAuth(true))
	owner := env.register(t, "Anna", "anna@example.com", "secret1")
	other := env.register(t, "Ola", "ola@example.com", "secret2")
	ownerToken := env.login(t, "anna@example.com", "secret1")

	resp, err := resty.New().R().
		Get(env.url(fmt.Sprintf("/cart/%d", owner.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = resty.New().R().
		SetAuthToken(ownerToken).
		Get(env.url(fmt.Sprintf("/cart/%d", owner.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	var errResp models.ErrorResponse
	resp, err = resty.New().R().
		SetAuthToken(ownerToken).
		SetError(&errResp).
		Delete(env.url(fmt.Sprintf("/cart/%d/1", other.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	assert.Equal(t, "Forbidden", errResp.Error)
}

func TestCartInvalidPathID(t *testing.T) {
	env := newTestEnv(t)

	var errResp models.ErrorResponse
	resp, err := resty.New().R().
		SetError(&errResp).
		Get(env.url("/cart/abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "InvalidRequest", errResp.Error)
}

func TestProducts(t *testing.T) {
	env := newTestEnv(t)

	var created models.Product
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(models.CreateProductRequest{Name: "Talerz", Price: 7.5}).
		SetResult(&created).
		Post(env.url("/products"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	assert.Positive(t, created.ID)

	var products []models.Product
	resp, err = resty.New().R().
		SetResult(&products).
		Get(env.url("/products"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, products, 1)

	var product models.Product
	resp, err = resty.New().R().
		SetResult(&product).
		Get(env.url(fmt.Sprintf("/products/%d", created.ID)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "Talerz", product.Name)

	resp, err = resty.New().R().
		Get(env.url(fmt.Sprintf("/products/%d", created.ID+1)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"price": 1}`).
		Post(env.url("/products"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestRootPingAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, err := resty.New().R().Get(env.url("/"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "Server is working!", resp.String())

	resp, err = resty.New().R().Get(env.url("/ping"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	_, err = resty.New().R().Get(env.url("/user"))
	require.NoError(t, err)

	resp, err = resty.New().R().Get(env.url("/metrics"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.String(), `shop_auth_failures_total{reason="NoToken"} 1`)
	assert.Contains(t, resp.String(), `route="/ping"`)

}

func TestMetricsIgnoresSpoofedClientIP(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(testSigningKey)
	require.NoError(t, err)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	checker, err := ipchecker.New("10.0.0.0/8")
	require.NoError(t, err)

	srv := httptest.NewServer(New(
		shopservice.New(db, passwordhasher.New(passwordhasher.WithCost(bcrypt.MinCost)), tokens),
		auth.New(tokens, auth.WithErrorResponder(WriteError)),
		collector,
		checker,
	))
	defer srv.Close()

	resp, err := resty.New().R().
		SetHeader("X-Real-IP", "10.0.0.1").
		SetHeader("X-Forwarded-For", "10.0.0.1").
		Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func gzipString(input string) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	_, err := gzipWriter.Write([]byte(input))
	if err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func TestGzippedRequestAndResponse(t *testing.T) {
	env := newTestEnv(t)

	body, err := gzipString(`{"name":"Anna","surname":"K","email":"gz@example.com","password":"pw"}`)
	require.NoError(t, err)

	request, err := http.NewRequest(http.MethodPost, env.url("/register"), bytes.NewReader(body))
	require.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Content-Encoding", "gzip")
	request.Header.Set("Accept-Encoding", "gzip")

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "gzip", response.Header.Get("Content-Encoding"))

	reader, err := gzip.NewReader(response.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"email":"gz@example.com"`)
}

func TestWriteError(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "conflict",
			err:          models.ErrDuplicateEmail,
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"error":"DuplicateEmail","message":"a user with this email already exists"}`,
		},
		{
			name:         "wrapped not found",
			err:          fmt.Errorf("lookup: %w", models.ErrRecordNotFound),
			expectedCode: http.StatusNotFound,
			expectedBody: `{"success":false,"error":"NotFound","message":"not found"}`,
		},
		{
			name:         "auth",
			err:          models.ErrInvalidToken,
			expectedCode: http.StatusUnauthorized,
			expectedBody: `{"success":false,"error":"InvalidToken","message":"authorization token is invalid or expired"}`,
		},
		{
			name:         "storage failure hides details",
			err:          errors.New("pq: connection refused to 10.0.0.5"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"error":"InternalError","message":"internal server error"}`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			WriteError(recorder, testCase.err)
			assert.Equal(t, testCase.expectedCode, recorder.Code)
			assert.JSONEq(t, testCase.expectedBody, recorder.Body.String())
		})
	}
}
