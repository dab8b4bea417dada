package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/pkg/response"
	"github.com/daeli/backend/pkg/utils"
)

// Partners is the partner persistence the handler needs.
type Partners interface {
	GetByID(ctx context.Context, id string) (*models.Partner, error)
	GetByEmail(ctx context.Context, email string) (*models.Partner, error)
	Create(ctx context.Context, p *models.Partner, join bool) (*models.Partner, error)
	ListByCouple(ctx context.Context, coupleToken string) ([]models.Partner, error)
}

// SignupRequest is the body for POST /auth/signup. A coupleToken joins the
// partner to an existing couple; without one a new couple is started.
type SignupRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=6"`
	DisplayName *string `json:"displayName" binding:"omitempty,max=100"`
	CoupleToken string  `json:"coupleToken"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token   string               `json:"token"`
	Partner models.PartnerPublic `json:"partner"`
}

// CoupleResponse is the body of GET /api/me.
type CoupleResponse struct {
	Partner  models.PartnerPublic   `json:"partner"`
	Partners []models.PartnerPublic `json:"partners"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   Partners
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo Partners, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()

	if _, err := h.repo.GetByEmail(ctx, email); err == nil {
		response.Conflict(c, "email already in use")
		return
	} else if !errors.Is(err, ErrPartnerNotFound) {
		h.logger.Error("lookup partner failed", zap.Error(err))
		response.Internal(c, "failed to create partner")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	join := strings.TrimSpace(req.CoupleToken) != ""
	coupleToken := strings.TrimSpace(req.CoupleToken)
	if !join {
		if coupleToken, err = utils.NewCoupleToken(); err != nil {
			response.Internal(c, "failed to create couple")
			return
		}
	}
	var displayName *string
	if req.DisplayName != nil {
		if v := strings.TrimSpace(*req.DisplayName); v != "" {
			displayName = &v
		}
	}

	partner, err := h.repo.Create(ctx, &models.Partner{
		ID:           uuid.NewString(),
		CoupleToken:  coupleToken,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}, join)
	switch {
	case errors.Is(err, ErrEmailTaken):
		response.Conflict(c, "email already in use")
		return
	case errors.Is(err, ErrCoupleFull):
		response.Conflict(c, "couple already has two partners")
		return
	case errors.Is(err, ErrCoupleNotFound):
		response.NotFound(c, "couple not found")
		return
	case err != nil:
		h.logger.Error("create partner failed", zap.Error(err))
		response.Internal(c, "failed to create partner")
		return
	}

	token, err := h.jwt.Generate(partner.ID, partner.CoupleToken, partner.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("partner signed up", zap.String("partner_id", partner.ID), zap.Bool("joined", join))
	response.Created(c, TokenResponse{Token: token, Partner: partner.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	partner, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, ErrPartnerNotFound) {
			h.logger.Error("lookup partner failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, partner.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(partner.ID, partner.CoupleToken, partner.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Partner: partner.ToPublic()})
}

// Me handles GET /api/me: the caller and the partners of their couple.
func (h *Handler) Me(c *gin.Context) {
	partnerID := PartnerID(c)
	ctx := c.Request.Context()
	partner, err := h.repo.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, ErrPartnerNotFound) {
			response.NotFound(c, "partner not found")
			return
		}
		response.Internal(c, "failed to load partner")
		return
	}
	members, err := h.repo.ListByCouple(ctx, partner.CoupleToken)
	if err != nil {
		response.Internal(c, "failed to load couple")
		return
	}
	out := CoupleResponse{Partner: partner.ToPublic(), Partners: make([]models.PartnerPublic, 0, len(members))}
	for i := range members {
		out.Partners = append(out.Partners, members[i].ToPublic())
	}
	response.OK(c, out)
}
