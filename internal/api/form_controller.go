package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// FormController 许可证控制器
type FormController struct {
	formService     service.FormService
	workflowService service.WorkflowService
}

// NewFormController 创建许可证控制器
func NewFormController(formService service.FormService, workflowService service.WorkflowService) *FormController {
	return &FormController{
		formService:     formService,
		workflowService: workflowService,
	}
}

// List 列出许可证
// @Summary      列出许可证
// @Description  按用户、公司、状态过滤
// @Tags         许可证管理
// @Produce      json
// @Param        user_id query string false "用户 ID"
// @Param        company_id query string false "公司 ID"
// @Param        status query string false "状态: PENDING, APPROVED, CLOSED"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /forms [get]
// @Security     BearerAuth
func (c *FormController) List(ctx *gin.Context) {
	filter := &repository.FormFilter{}
	if v := ctx.Query("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := ctx.Query("company_id"); v != "" {
		filter.CompanyID = &v
	}
	if v := ctx.Query("status"); v != "" {
		filter.Status = &v
	}

	page, pageSize := parsePagination(ctx)

	forms, err := c.formService.List(filter)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	total := int64(len(forms))
	totalPage := int((total + int64(pageSize) - 1) / int64(pageSize))
	start := (page - 1) * pageSize
	if start > len(forms) {
		start = len(forms)
	}
	end := start + pageSize
	if end > len(forms) {
		end = len(forms)
	}

	Paginated(ctx, forms[start:end], PaginationInfo{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// parsePagination 解析分页查询参数
// Gin 对下划线参数的绑定不可靠,手动解析
func parsePagination(ctx *gin.Context) (page, pageSize int) {
	page, pageSize = 1, 20
	if v := ctx.Query("page"); v != "" {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil && p > 0 {
			page = p
		}
	}
	if v := ctx.Query("page_size"); v != "" {
		var ps int
		if _, err := fmt.Sscanf(v, "%d", &ps); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}

// Get 获取许可证详情
// @Summary      获取许可证完整树
// @Tags         许可证管理
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /forms/{id} [get]
// @Security     BearerAuth
func (c *FormController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	form, err := c.formService.Get(id)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, form)
}

// Update 更新许可证
// @Summary      更新许可证
// @Description  按表单载荷做树形比对更新,已有节点保留 ID,缺失节点删除
// @Tags         许可证管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Param        request body service.FormShape true "表单载荷"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /forms/{id} [put]
// @Security     BearerAuth
func (c *FormController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	var shape service.FormShape
	if err := ctx.ShouldBindJSON(&shape); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	// 输入验证和清理
	if !sanitizeShapeTitle(ctx, &shape) {
		return
	}

	form, err := c.formService.Update(ctx.Request.Context(), id, ctx.GetString("user_id"), &shape)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, form)
}

// Delete 删除许可证
// @Summary      删除许可证及其整棵子树
// @Tags         许可证管理
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /forms/{id} [delete]
// @Security     BearerAuth
func (c *FormController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	if err := c.formService.Delete(ctx.Request.Context(), id, ctx.GetString("user_id")); err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// Duplicate 复制许可证
// @Summary      复制许可证
// @Description  深拷贝整棵树,标题追加 " (Copy)",尽力分配新编号
// @Tags         许可证管理
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Success      201  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /forms/{id}/duplicate [post]
// @Security     BearerAuth
func (c *FormController) Duplicate(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	form, err := c.formService.Duplicate(ctx.Request.Context(), id, ctx.GetString("user_id"))
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, form)
}

// Approve 审批通过许可证
// @Summary      审批通过
// @Description  PENDING 或 APPROVED 的许可证置为 APPROVED,重复审批幂等
// @Tags         审批流转
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /forms/{id}/approve [post]
// @Security     BearerAuth
func (c *FormController) Approve(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	if err := c.workflowService.Approve(ctx.Request.Context(), id, ctx.GetString("user_id")); err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id, "status": "APPROVED"})
}

// Close 关闭许可证
// @Summary      关闭许可证
// @Description  APPROVED 的许可证置为终态 CLOSED,关闭记录原样保存
// @Tags         审批流转
// @Accept       json
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Param        request body service.CloseRequest true "关闭参数"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /forms/{id}/close [post]
// @Security     BearerAuth
func (c *FormController) Close(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	var req service.CloseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := c.workflowService.Close(ctx.Request.Context(), id, ctx.GetString("user_id"), &req); err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id, "status": "CLOSED"})
}

// Pending 查询待某审批人处理的许可证
// @Summary      按审批人姓名查询待审批项
// @Description  匹配填报记录中的许可签发人字段,返回待审批的填报与许可证
// @Tags         审批流转
// @Produce      json
// @Param        actor query string true "审批人姓名"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /forms/pending [get]
// @Security     BearerAuth
func (c *FormController) Pending(ctx *gin.Context) {
	actor := ctx.Query("actor")
	if actor == "" {
		Error(ctx, http.StatusBadRequest, "missing actor", "query parameter 'actor' is required")
		return
	}

	pending, err := c.workflowService.FindPendingForActor(actor)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, pending)
}
