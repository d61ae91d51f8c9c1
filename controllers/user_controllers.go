package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

type UserController struct {
	DB      *gorm.DB
	Tokens  *utils.TokenIssuer
	Auditor *services.Auditor
	Log     logrus.FieldLogger
}

func NewUserController(db *gorm.DB, tokens *utils.TokenIssuer, auditor *services.Auditor, log logrus.FieldLogger) *UserController {
	return &UserController{DB: db, Tokens: tokens, Auditor: auditor, Log: log}
}

// Register creates a customer account.
func (uc *UserController) Register(c *gin.Context) {
	var req struct {
		Username  string `json:"username" form:"username" binding:"required"`
		Password  string `json:"password" form:"password" binding:"required"`
		Password2 string `json:"password2" form:"password2" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("username, password and password2 are required"))
		return
	}

	username := strings.TrimSpace(req.Username)
	switch {
	case len(username) < 3:
		utils.RespondError(c, http.StatusBadRequest, errors.New("username must be at least 3 characters"))
		return
	case len(req.Password) < 8:
		utils.RespondError(c, http.StatusBadRequest, errors.New("password must be at least 8 characters"))
		return
	case req.Password != req.Password2:
		utils.RespondError(c, http.StatusBadRequest, errors.New("passwords do not match"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}

	user := models.User{Username: username, PasswordHash: string(hashed), Role: models.RoleCustomer}
	// The unique index on username decides concurrent registrations.
	err = uc.DB.Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.RespondError(c, http.StatusConflict, errors.New("username already taken"))
		return
	}
	if err != nil {
		uc.Log.WithError(err).WithField("username", username).Error("create user")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}

	uc.Auditor.Record(c.Request.Context(), models.AuditRegister, &user.Username, c.ClientIP(), nil)
	uc.Log.WithField("username", user.Username).Info("new user registered")

	utils.RespondJSON(c, http.StatusCreated, "Account created, please log in", gin.H{
		"user_id": user.ID,
	})
}

// Login binds the user to the session and also returns a bearer token for API
// clients. A cart left on the session by another user is discarded.
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("username and password are required"))
		return
	}

	username := strings.TrimSpace(input.Username)
	var user models.User
	err := uc.DB.Where("username = ?", username).First(&user).Error
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	}
	if err != nil {
		uc.Auditor.Record(c.Request.Context(), models.AuditLoginFailed, &username, c.ClientIP(), nil)
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}

	cart := services.DecodeCart(middlewares.LoadCart(c), user.ID)
	identity := middlewares.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	if err := uc.bind(c, identity, cart); err != nil {
		uc.Log.WithError(err).Error("save session")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}

	token, err := uc.Tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}

	uc.Auditor.Record(c.Request.Context(), models.AuditLogin, &user.Username, c.ClientIP(), nil)

	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":     token,
		"user_role": strings.ToLower(user.Role),
		"username":  user.Username,
	})
}

func (uc *UserController) bind(c *gin.Context, id middlewares.Identity, cart *services.Cart) error {
	raw, err := cart.Encode()
	if err != nil {
		return err
	}
	if err := middlewares.BindSession(c, id); err != nil {
		return err
	}
	return middlewares.SaveCart(c, raw)
}

// Logout forgets the identity and the cart.
func (uc *UserController) Logout(c *gin.Context) {
	var username *string
	if id, ok := middlewares.CurrentIdentity(c); ok {
		username = &id.Username
	}

	if err := middlewares.ClearSession(c); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	if username != nil {
		uc.Auditor.Record(c.Request.Context(), models.AuditLogout, username, c.ClientIP(), nil)
	}

	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}
