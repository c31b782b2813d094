package authhandler

import (
	"errors"
	"net/http"

	"roomrelay/internal/services/users"

	"github.com/gin-gonic/gin"
)

type CredentialsBody struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum" example:"alice"`
	Password string `json:"password" binding:"required,min=8,max=72"          example:"correct-horse"`
} // @name CredentialsRequest

type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username" example:"alice"`
} // @name TokenResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name AuthErrorResponse

type Handler struct {
	svc users.IUserService
}

func New(svc users.IUserService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
}

// @Summary		Register
// @Description	Creates an account and returns a bearer token for it.
// @Tags			Auth
// @Param			body	body		CredentialsBody	true	"Credentials"
// @Success		201		{object}	TokenResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/api/auth/register [post]
func (h *Handler) register(ginCtx *gin.Context) {
	var body CredentialsBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.svc.Register(ginCtx.Request.Context(), body.Username, body.Password)
	if errors.Is(err, users.ErrUserExists) {
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, TokenResponse{Token: token, Username: body.Username})
}

// @Summary		Login
// @Tags			Auth
// @Param			body	body		CredentialsBody	true	"Credentials"
// @Success		200		{object}	TokenResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		401		{object}	ErrorResponse
// @Router			/api/auth/login [post]
func (h *Handler) login(ginCtx *gin.Context) {
	var body CredentialsBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.svc.Login(ginCtx.Request.Context(), body.Username, body.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		ginCtx.JSON(http.StatusUnauthorized, &ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, TokenResponse{Token: token, Username: body.Username})
}
