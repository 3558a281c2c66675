package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-service/internal/domain"
	"user-service/internal/metrics"
	"user-service/internal/repository"
	"user-service/internal/service"
	"user-service/internal/trace"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errInvalidID      = errors.New("invalid user id")
	errRateLimited    = errors.New("too many login attempts")
	errMissingToken   = errors.New("missing token")
	errInvalidToken   = errors.New("invalid token")
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	tokens   service.TokenCodec
	tracer   *trace.Tracer
	limiter  service.LoginRateLimiter
	metrics  *metrics.Metrics
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(
	logger *zap.Logger,
	userServ *service.UserService,
	tokens service.TokenCodec,
	tracer *trace.Tracer,
	limiter service.LoginRateLimiter,
	m *metrics.Metrics,
) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		tokens:   tokens,
		tracer:   tracer,
		limiter:  limiter,
		metrics:  m,
	}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register maneja POST /api/users/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		h.fail(c, http.StatusBadRequest, errInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	h.tracer.LogEvent(ctx, "User registration started for: "+req.Username, trace.LevelInfo)

	user, err := h.userServ.Register(ctx, service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			h.fail(c, http.StatusConflict, err)
			return
		}
		h.logger.Error("register user failed", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Login maneja POST /api/users/login. Responde el token como texto plano.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		h.fail(c, http.StatusBadRequest, errInvalidRequest)
		return
	}
	ctx := c.Request.Context()

	if h.limiter != nil && !h.limiter.Allow(ctx, req.Username) {
		h.metrics.LoginAttempt("rate_limited")
		h.fail(c, http.StatusTooManyRequests, errRateLimited)
		return
	}

	token, err := h.userServ.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInvalidCredentials):
			h.metrics.LoginAttempt("invalid")
			h.fail(c, http.StatusUnauthorized, err)
		default:
			h.metrics.LoginAttempt("error")
			h.logger.Error("login failed", zap.Error(err))
			h.fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	h.metrics.LoginAttempt("success")
	c.String(http.StatusOK, token)
}

// GetUser maneja GET /api/users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), id)
	if err != nil {
		h.failLookup(c, "get user failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Me maneja GET /api/users/me con el usuario del bearer token.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		h.fail(c, http.StatusUnauthorized, errInvalidToken)
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.failLookup(c, "get current user failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers maneja GET /api/users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userServ.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUser maneja PUT /api/users/:id.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req domain.UserUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update request", zap.Error(err))
		h.fail(c, http.StatusBadRequest, errInvalidRequest)
		return
	}

	user, err := h.userServ.Update(c.Request.Context(), id, req)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			h.fail(c, http.StatusConflict, err)
			return
		}
		h.failLookup(c, "update user failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ValidateToken maneja GET /api/users/validate/:token y responde true/false.
func (h *UserHandler) ValidateToken(c *gin.Context) {
	valid := h.userServ.ValidateToken(c.Request.Context(), c.Param("token"))
	c.JSON(http.StatusOK, valid)
}

func (h *UserHandler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, http.StatusBadRequest, errInvalidID)
		return 0, false
	}
	return id, true
}

func (h *UserHandler) failLookup(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		h.fail(c, http.StatusNotFound, err)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	h.fail(c, http.StatusInternalServerError, err)
}

// fail registra el error para el trace y responde sin exponer detalles internos.
func (h *UserHandler) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": publicMessage(status, err)})
}

func publicMessage(status int, err error) string {
	switch status {
	case http.StatusNotFound:
		return "user not found"
	case http.StatusConflict:
		return "username or email already exists"
	case http.StatusUnauthorized:
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			return "invalid credentials"
		}
		return err.Error()
	case http.StatusBadRequest, http.StatusTooManyRequests:
		return err.Error()
	default:
		return http.StatusText(status)
	}
}
