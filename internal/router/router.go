// Package router wires the shop HTTP API: account, profile, cart and
// catalog handlers plus the shared middleware chain.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shop/internal/auth"
	"github.com/patric-chuzhbe/shop/internal/gzippedhttp"
	"github.com/patric-chuzhbe/shop/internal/logger"
	"github.com/patric-chuzhbe/shop/internal/models"
)

type accountService interface {
	Register(ctx context.Context, request *models.RegisterRequest) (*models.PublicUser, error)

	Login(ctx context.Context, email, password string) (string, error)

	GetUser(ctx context.Context, userID int64) (*models.UserData, error)

	GetProfile(ctx context.Context, userID int64) (*models.UserInfo, error)

	UpsertProfile(ctx context.Context, userID int64, fields models.ProfileFields) error
}

type cartService interface {
	AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error)

	ListCart(ctx context.Context, userID int64) ([]models.CartItem, error)

	RemoveFromCart(ctx context.Context, userID, productID int64) error

	SetCartQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.CartEntry, error)
}

type catalogService interface {
	ListProducts(ctx context.Context) ([]models.Product, error)

	GetProduct(ctx context.Context, productID int64) (*models.Product, error)

	CreateProduct(ctx context.Context, request *models.CreateProductRequest) (*models.Product, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type service interface {
	accountService
	cartService
	catalogService
	pinger
}

type identityGuard interface {
	RequireIdentity(h http.Handler) http.Handler
}

type metricsCollector interface {
	Middleware(h http.Handler) http.Handler
	Handler() http.Handler
}

type subnetGuard interface {
	TrustedOnly(h http.Handler) http.Handler
}

// Router holds the handler dependencies.
type Router struct {
	svc                   service
	validate              *validator.Validate
	cartRoutesRequireAuth bool
}

type initOptions struct {
	cartRoutesRequireAuth bool
	corsAllowedOrigins    []string
}

type InitOption func(*initOptions)

// WithCartRoutesRequireAuth puts the /cart/{userID} routes behind the bearer
// token and rejects path user IDs that differ from the token identity.
func WithCartRoutesRequireAuth(value bool) InitOption {
	return func(options *initOptions) {
		options.cartRoutesRequireAuth = value
	}
}

func WithCORSAllowedOrigins(origins []string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigins = origins
	}
}

func New(
	svc service,
	authenticator identityGuard,
	collector metricsCollector,
	trusted subnetGuard,
	optionsProto ...InitOption,
) *chi.Mux {
	options := &initOptions{
		cartRoutesRequireAuth: false,
		corsAllowedOrigins:    []string{"*"},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	myRouter := Router{
		svc:                   svc,
		validate:              validator.New(),
		cartRoutesRequireAuth: options.cartRoutesRequireAuth,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		collector.Middleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: options.corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Content-Encoding", logger.RequestIDHeader},
			ExposedHeaders: []string{logger.RequestIDHeader},
			MaxAge:         300,
		}),
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/`, myRouter.GetRoot)
	router.Get(`/ping`, myRouter.GetPing)
	router.With(trusted.TrustedOnly).Get(`/metrics`, collector.Handler().ServeHTTP)

	router.Post(`/register`, myRouter.PostRegister)
	router.Post(`/login`, myRouter.PostLogin)

	router.Get(`/products`, myRouter.GetProducts)
	router.Post(`/products`, myRouter.PostProducts)
	router.Get(`/products/{productID}`, myRouter.GetProduct)

	router.Group(func(protected chi.Router) {
		protected.Use(authenticator.RequireIdentity)
		protected.Get(`/user`, myRouter.GetUser)
		protected.Get(`/user-info`, myRouter.GetUserInfo)
		protected.Put(`/user-info`, myRouter.PutUserInfo)
		protected.Post(`/cart`, myRouter.PostCart)
	})

	router.Group(func(cartByPath chi.Router) {
		if myRouter.cartRoutesRequireAuth {
			cartByPath.Use(authenticator.RequireIdentity)
		}
		cartByPath.Get(`/cart/{userID}`, myRouter.GetCart)
		cartByPath.Delete(`/cart/{userID}/{productID}`, myRouter.DeleteCartItem)
		cartByPath.Put(`/cart/{userID}/{productID}`, myRouter.PutCartItem)
	})

	return router
}

// WriteError answers with the unified error body. Client-facing errors keep
// their code and message; anything else is logged and reported as a bare 500.
func WriteError(response http.ResponseWriter, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		logger.Log.Errorln("Unexpected error while handling the request: ", zap.Error(err))
		writeJSON(response, http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   "InternalError",
			Message: "internal server error",
		})
		return
	}

	writeJSON(response, statusFor(appErr), models.ErrorResponse{
		Success: false,
		Error:   appErr.Code,
		Message: appErr.Message,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeJSON(response http.ResponseWriter, status int, body any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

func invalidRequest(err error) *models.AppError {
	return &models.AppError{
		Kind:    models.ErrValidation,
		Code:    models.ErrInvalidRequest.Code,
		Message: err.Error(),
	}
}

func (router *Router) decodeJSON(request *http.Request, destination any) error {
	if err := json.NewDecoder(request.Body).Decode(destination); err != nil {
		logger.Log.Debugln("Error calling the `json.NewDecoder(request.Body).Decode()`: ", zap.Error(err))
		return invalidRequest(err)
	}
	if err := router.validate.Struct(destination); err != nil {
		return invalidRequest(err)
	}
	return nil
}

func pathID(request *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(chi.URLParam(request, name), 10, 64)
	if err != nil || value < 1 {
		return 0, invalidRequest(fmt.Errorf("%s must be a positive integer", name))
	}
	return value, nil
}

func identity(request *http.Request) (auth.Identity, error) {
	resolved, ok := auth.IdentityFromContext(request.Context())
	if !ok {
		return auth.Identity{}, models.ErrNoToken
	}
	return resolved, nil
}

// cartOwner returns the path user ID. When the cart routes require a token,
// it must match the resolved identity.
func (router *Router) cartOwner(request *http.Request) (int64, error) {
	userID, err := pathID(request, "userID")
	if err != nil {
		return 0, err
	}
	if !router.cartRoutesRequireAuth {
		return userID, nil
	}

	resolved, err := identity(request)
	if err != nil {
		return 0, err
	}
	if resolved.UserID != userID {
		return 0, models.ErrAccessDenied
	}
	return userID, nil
}

func (router *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	response.WriteHeader(http.StatusOK)
	if _, err := response.Write([]byte("Server is working!")); err != nil {
		logger.Log.Debugln("Error calling the `response.Write()`: ", zap.Error(err))
	}
}

func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.svc.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `router.svc.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	response.WriteHeader(http.StatusOK)
}

func (router *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var requestDTO models.RegisterRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	created, err := router.svc.Register(request.Context(), &requestDTO)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.RegisterResponse{
		Success: true,
		User:    *created,
	})
}

func (router *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var requestDTO models.LoginRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	token, err := router.svc.Login(request.Context(), requestDTO.Email, requestDTO.Password)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{
		Success: true,
		Token:   token,
	})
}

func (router *Router) GetUser(response http.ResponseWriter, request *http.Request) {
	resolved, err := identity(request)
	if err != nil {
		WriteError(response, err)
		return
	}

	userData, err := router.svc.GetUser(request.Context(), resolved.UserID)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserDataResponse{
		Success:  true,
		UserData: *userData,
	})
}

func (router *Router) GetUserInfo(response http.ResponseWriter, request *http.Request) {
	resolved, err := identity(request)
	if err != nil {
		WriteError(response, err)
		return
	}

	info, err := router.svc.GetProfile(request.Context(), resolved.UserID)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserInfoResponse{
		Success:  true,
		UserInfo: *info,
	})
}

func (router *Router) PutUserInfo(response http.ResponseWriter, request *http.Request) {
	resolved, err := identity(request)
	if err != nil {
		WriteError(response, err)
		return
	}

	var requestDTO models.UpdateUserInfoRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	if err := router.svc.UpsertProfile(request.Context(), resolved.UserID, requestDTO.ProfileFields); err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

func (router *Router) PostCart(response http.ResponseWriter, request *http.Request) {
	resolved, err := identity(request)
	if err != nil {
		WriteError(response, err)
		return
	}

	var requestDTO models.AddToCartRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	entry, err := router.svc.AddToCart(request.Context(), resolved.UserID, requestDTO.ProductID)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.AddToCartResponse{
		Success: true,
		Product: *entry,
	})
}

func (router *Router) GetCart(response http.ResponseWriter, request *http.Request) {
	userID, err := router.cartOwner(request)
	if err != nil {
		WriteError(response, err)
		return
	}

	items, err := router.svc.ListCart(request.Context(), userID)
	if err != nil {
		WriteError(response, err)
		return
	}
	if items == nil {
		items = []models.CartItem{}
	}

	writeJSON(response, http.StatusOK, items)
}

func (router *Router) DeleteCartItem(response http.ResponseWriter, request *http.Request) {
	userID, err := router.cartOwner(request)
	if err != nil {
		WriteError(response, err)
		return
	}
	productID, err := pathID(request, "productID")
	if err != nil {
		WriteError(response, err)
		return
	}

	if err := router.svc.RemoveFromCart(request.Context(), userID, productID); err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

func (router *Router) PutCartItem(response http.ResponseWriter, request *http.Request) {
	userID, err := router.cartOwner(request)
	if err != nil {
		WriteError(response, err)
		return
	}
	productID, err := pathID(request, "productID")
	if err != nil {
		WriteError(response, err)
		return
	}

	var requestDTO models.UpdateCartQuantityRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	entry, err := router.svc.SetCartQuantity(request.Context(), userID, productID, requestDTO.Quantity)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UpdateCartQuantityResponse{
		Success:     true,
		UpdatedItem: *entry,
	})
}

func (router *Router) GetProducts(response http.ResponseWriter, request *http.Request) {
	products, err := router.svc.ListProducts(request.Context())
	if err != nil {
		WriteError(response, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	writeJSON(response, http.StatusOK, products)
}

func (router *Router) GetProduct(response http.ResponseWriter, request *http.Request) {
	productID, err := pathID(request, "productID")
	if err != nil {
		WriteError(response, err)
		return
	}

	product, err := router.svc.GetProduct(request.Context(), productID)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, product)
}

func (router *Router) PostProducts(response http.ResponseWriter, request *http.Request) {
	var requestDTO models.CreateProductRequest
	if err := router.decodeJSON(request, &requestDTO); err != nil {
		WriteError(response, err)
		return
	}

	product, err := router.svc.CreateProduct(request.Context(), &requestDTO)
	if err != nil {
		WriteError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, product)
}
