package handler

import (
	"context"

	"github.com/enterprisecrm/backend/internal/application/identity"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserService is the user administration surface the handler needs
type UserService interface {
	List(ctx context.Context, filter identity.UserListFilter) (*shared.Paginated[identity.UserResponse], error)
	GetByID(ctx context.Context, id uuid.UUID) (*identity.UserResponse, error)
	ChangeRole(ctx context.Context, actorID, id uuid.UUID, req identity.ChangeRoleRequest) (*identity.UserResponse, error)
	Activate(ctx context.Context, actorID, id uuid.UUID) (*identity.UserResponse, error)
	Deactivate(ctx context.Context, actorID, id uuid.UUID) (*identity.UserResponse, error)
	Unlock(ctx context.Context, actorID, id uuid.UUID) (*identity.UserResponse, error)
	Delete(ctx context.Context, actorID, id uuid.UUID) error
}

// UserHandler handles user management HTTP requests. Every route is admin only.
type UserHandler struct {
	BaseHandler
	userService UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List godoc
// @ID           listUsers
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        search    query string false "Search by username, email or name"
// @Param        role      query string false "Role" Enums(admin, manager, sales_rep)
// @Param        status    query string false "Status" Enums(active, locked, deactivated)
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Param        order_by  query string false "Order by field"
// @Param        order_dir query string false "Order direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]identity.UserResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter identity.UserListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	page, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, page)
}

// GetByID godoc
// @ID           getUser
// @Summary      Get a user by ID
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} APIResponse[identity.UserResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamID(c)
	if !ok {
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

// ChangeRole godoc
// @ID           changeUserRole
// @Summary      Change a user's role
// @Description  Tokens issued to the user before the change are revoked.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id      path string                      true "User ID" format(uuid)
// @Param        request body identity.ChangeRoleRequest true "New role"
// @Success      200 {object} APIResponse[identity.UserResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id}/role [put]
func (h *UserHandler) ChangeRole(c *gin.Context) {
	actOnIDWithBody(&h.BaseHandler, c, h.userService.ChangeRole)
}

// Activate godoc
// @ID           activateUser
// @Summary      Activate a user
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} APIResponse[identity.UserResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id}/activate [post]
func (h *UserHandler) Activate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.userService.Activate)
}

// Deactivate godoc
// @ID           deactivateUser
// @Summary      Deactivate a user
// @Description  Admins cannot deactivate themselves.
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} APIResponse[identity.UserResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id}/deactivate [post]
func (h *UserHandler) Deactivate(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.userService.Deactivate)
}

// Unlock godoc
// @ID           unlockUser
// @Summary      Unlock a locked user
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID" format(uuid)
// @Success      200 {object} APIResponse[identity.UserResponse]
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id}/unlock [post]
func (h *UserHandler) Unlock(c *gin.Context) {
	actOnID(&h.BaseHandler, c, h.userService.Unlock)
}

// Delete godoc
// @ID           deleteUser
// @Summary      Delete a user
// @Description  Soft deletes the user. Admins cannot delete themselves.
// @Tags         users
// @Param        id path string true "User ID" format(uuid)
// @Success      204
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	deleteByID(&h.BaseHandler, c, h.userService.Delete)
}
