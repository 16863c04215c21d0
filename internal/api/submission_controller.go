package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mautops/permit-gin/internal/service"
	"github.com/mautops/permit-gin/internal/utils"
)

// SubmissionController 填报控制器
type SubmissionController struct {
	submissionService service.SubmissionService
}

// NewSubmissionController 创建填报控制器
func NewSubmissionController(submissionService service.SubmissionService) *SubmissionController {
	return &SubmissionController{
		submissionService: submissionService,
	}
}

// CreateSubmissionRequest 创建填报请求
type CreateSubmissionRequest struct {
	Answers json.RawMessage `json:"answers" binding:"required" swaggertype:"object"` // 填报答案,按组件 ID 或分组组织
}

// Create 提交填报
// @Summary      提交许可证填报
// @Description  保存填报答案;许可证处于待审批状态时向在线审批人推送通知
// @Tags         填报管理
// @Accept       json
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Param        request body CreateSubmissionRequest true "填报答案"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /forms/{id}/submissions [post]
// @Security     BearerAuth
func (c *SubmissionController) Create(ctx *gin.Context) {
	formID := ctx.Param("id")
	if err := utils.ValidateID(formID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	var req CreateSubmissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	submission, err := c.submissionService.Create(ctx.Request.Context(), formID, ctx.GetString("user_id"), req.Answers)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Created(ctx, submission)
}

// List 列出许可证的填报记录
// @Summary      列出填报记录
// @Tags         填报管理
// @Produce      json
// @Param        id path string true "许可证 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /forms/{id}/submissions [get]
// @Security     BearerAuth
func (c *SubmissionController) List(ctx *gin.Context) {
	formID := ctx.Param("id")
	if err := utils.ValidateID(formID); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid form id", err.Error())
		return
	}

	submissions, err := c.submissionService.ListByForm(formID)
	if err != nil {
		HandleServiceError(ctx, err)
		return
	}

	Success(ctx, submissions)
}
