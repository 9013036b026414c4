package handler

import (
	"errors"
	"net/http"

	"petstore/internal/config"
	"petstore/internal/repository"
	auth "petstore/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	registerUC *auth.RegisterUserUsecase // 会員登録usecase
	loginUC    *auth.LoginUsecase        // ログインusecase
	profileUC  *auth.UpdateProfileUsecase
}

// DIコンストラクタ
func NewAuthHandler(registerUC *auth.RegisterUserUsecase, loginUC *auth.LoginUsecase, profileUC *auth.UpdateProfileUsecase) *AuthHandler {
	return &AuthHandler{registerUC: registerUC, loginUC: loginUC, profileUC: profileUC}
}

func (h *AuthHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.PUT("/profile", h.UpdateProfile, requireAuth(cfg, userRepo)...)
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=30"`
}

// 空の項目は変更しない
type profileRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email"`
	Phone     string `json:"phone" validate:"max=30"`
	Password  string `json:"password"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmailFormat):
			return badRequest(c, "invalid email format")
		case errors.Is(err, auth.ErrPasswordTooShort):
			return badRequest(c, "password must be at least 8 characters")
		case errors.Is(err, auth.ErrWeakPassword):
			return badRequest(c, "password is too weak")
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			return c.JSON(http.StatusConflict, ErrorResponse{Message: "User already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, out)
}

// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid email or password"})
		case errors.Is(err, auth.ErrUserInactive):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "account disabled"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		}
	}

	//JSONレスポンス（user + token）
	return c.JSON(http.StatusOK, out)
}

// PUT /auth/profile
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req profileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.profileUC.Execute(c.Request().Context(), auth.UpdateProfileInput{
		UserID:    userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
		case errors.Is(err, auth.ErrInvalidEmailFormat):
			return badRequest(c, "invalid email format")
		case errors.Is(err, auth.ErrPasswordTooShort):
			return badRequest(c, "password must be at least 8 characters")
		case errors.Is(err, auth.ErrWeakPassword):
			return badRequest(c, "password is too weak")
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			return c.JSON(http.StatusConflict, ErrorResponse{Message: "User already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
		}
	}

	return c.JSON(http.StatusOK, out)
}
