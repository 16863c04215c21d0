package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// DraftController 草稿控制器
type DraftController struct {
	draftService service.DraftService
}

// NewDraftController 创建草稿控制器
func NewDraftController(draftService service.DraftService) *DraftController {
	return &DraftController{
		draftService: draftService,
	}
}

// sanitizeShapeTitle 验证并清理载荷标题,失败时写出 400 并返回 false
// 空标题放行:未命名草稿合法,发布时兜底为 "Untitled Permit"
func sanitizeShapeTitle(ctx *gin.Context, shape *service.FormShape) bool {
	if strings.TrimSpace(shape.Title) == "" {
		return true
	}
	if err := utils.ValidateTitle(shape.Title); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid title", err.Error())
		return false
	}
	shape.Title, _ = utils.TrimAndValidate(shape.Title, 255)
	return true
}

// AutoSave 自动保存草稿
// @Summary      自动保存草稿
// @Description  保存或更新当前用户唯一的自动保存草稿,按节点 ID 做树形比对更新
// @Tags         草稿管理
// @Accept       json
// @Produce      json
// @Param        request body service.FormShape true "表单载荷"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /drafts/autosave [post]
// @Security     BearerAuth
func (c *DraftController) AutoSave(ctx *gin.Context) {
	var shape service.FormShape
	if err := ctx.ShouldBindJSON(&shape); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	// 输入验证和清理
	if !sanitizeShapeTitle(ctx, &shape) {
		return
	}

	userID := ctx.GetString("user_id")
	companyID := ctx.GetString("company_id")

	draft, err := c.draftService.SaveAutoSave(ctx.Request.Context(), userID, companyID, &shape)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Save 手动保存草稿
// @Summary      手动保存草稿
// @Description  每次保存都创建一份独立的新草稿
// @Tags         草稿管理
// @Accept       json
// @Produce      json
// @Param        request body service.FormShape true "表单载荷"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /drafts [post]
// @Security     BearerAuth
func (c *DraftController) Save(ctx *gin.Context) {
	var shape service.FormShape
	if err := ctx.ShouldBindJSON(&shape); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	// 输入验证和清理
	if !sanitizeShapeTitle(ctx, &shape) {
		return
	}

	userID := ctx.GetString("user_id")
	companyID := ctx.GetString("company_id")

	draft, err := c.draftService.SaveManual(ctx.Request.Context(), userID, companyID, &shape)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, draft)
}

// List 列出草稿
// @Summary      列出当前用户的草稿
// @Tags         草稿管理
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Router       /drafts [get]
// @Security     BearerAuth
func (c *DraftController) List(ctx *gin.Context) {
	userID := ctx.GetString("user_id")

	drafts, err := c.draftService.List(userID)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, drafts)
}

// Get 获取草稿详情
// @Summary      获取草稿完整树
// @Tags         草稿管理
// @Produce      json
// @Param        id path string true "草稿 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /drafts/{id} [get]
// @Security     BearerAuth
func (c *DraftController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid draft id", err.Error())
		return
	}

	draft, err := c.draftService.Get(id, ctx.GetString("user_id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, draft)
}

// Delete 删除草稿
// @Summary      删除草稿及其整棵子树
// @Tags         草稿管理
// @Produce      json
// @Param        id path string true "草稿 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /drafts/{id} [delete]
// @Security     BearerAuth
func (c *DraftController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid draft id", err.Error())
		return
	}

	if err := c.draftService.Delete(ctx.Request.Context(), id, ctx.GetString("user_id")); err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// PublishRequest 发布草稿请求
type PublishRequest struct {
	NumberPrefix string `json:"number_prefix"` // 许可证编号前缀(可选)
}

// Publish 发布草稿为正式许可证
// @Summary      发布草稿
// @Description  深拷贝草稿树创建 PENDING 状态的许可证,草稿本身保持不变
// @Tags         草稿管理
// @Accept       json
// @Produce      json
// @Param        id path string true "草稿 ID"
// @Param        request body PublishRequest false "发布参数"
// @Success      201  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /drafts/{id}/publish [post]
// @Security     BearerAuth
func (c *DraftController) Publish(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid draft id", err.Error())
		return
	}

	// 请求体可省略
	var req PublishRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}

	form, err := c.draftService.Publish(
		ctx.Request.Context(),
		id,
		ctx.GetString("user_id"),
		ctx.GetString("company_id"),
		req.NumberPrefix,
	)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, form)
}
