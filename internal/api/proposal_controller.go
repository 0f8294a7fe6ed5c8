package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/mautops/budget-gin/internal/utils"
	"github.com/sirupsen/logrus"
)

// ProposalController 禀议书控制器
type ProposalController struct {
	proposalService service.ProposalService
	logger          *logrus.Logger
}

// NewProposalController 创建禀议书控制器
func NewProposalController(proposalService service.ProposalService, logger *logrus.Logger) *ProposalController {
	return &ProposalController{
		proposalService: proposalService,
		logger:          logger,
	}
}

// Create 创建禀议书
// @Summary      创建禀议书
// @Description  保存禀议书及其采购项目、用役项目、费用分摊和审批线,非草稿直接提交
// @Tags         禀议书
// @Accept       json
// @Produce      json
// @Param        request body service.ProposalRequest true "禀议书"
// @Success      201  {object}  Response{data=service.SaveResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /proposals [post]
func (c *ProposalController) Create(ctx *gin.Context) {
	var req service.ProposalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.proposalService.Create(ctx.Request.Context(), &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to create proposal", err)
		return
	}
	Created(ctx, result)
}

// List 查询禀议书列表
// @Summary      查询禀议书列表
// @Tags         禀议书
// @Produce      json
// @Param        status         query string false "状态"
// @Param        contract_type  query string false "合同类型"
// @Param        budget_id      query int    false "事业预算 ID"
// @Param        created_by     query string false "创建人"
// @Param        keyword        query string false "标题或目的关键字"
// @Param        sort_by        query string false "排序字段"
// @Param        order          query string false "asc 或 desc"
// @Param        page           query int    false "页码" default(1)
// @Param        page_size      query int    false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /proposals [get]
func (c *ProposalController) List(ctx *gin.Context) {
	budgetID, err := utils.ParseOptionalID(ctx.Query("budget_id"))
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid budget_id", err.Error())
		return
	}

	page, pageSize := pageParams(ctx)
	filter := &repository.ProposalFilter{
		Status:       queryString(ctx, "status"),
		ContractType: queryString(ctx, "contract_type"),
		BudgetID:     budgetID,
		CreatedBy:    queryString(ctx, "created_by"),
		Keyword:      queryString(ctx, "keyword"),
		SortBy:       ctx.Query("sort_by"),
		Order:        ctx.Query("order"),
		Page:         page,
		PageSize:     pageSize,
	}

	proposals, total, err := c.proposalService.List(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, "failed to list proposals", err)
		return
	}
	Paginated(ctx, proposals, NewPaginationInfo(page, pageSize, total))
}

// Get 获取禀议书详情
// @Summary      获取禀议书详情
// @Tags         禀议书
// @Produce      json
// @Param        id   path int true "禀议书 ID"
// @Success      200  {object}  Response{data=service.ProposalDetail}
// @Failure      404  {object}  ErrorResponse
// @Router       /proposals/{id} [get]
func (c *ProposalController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	detail, err := c.proposalService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, "failed to get proposal", err)
		return
	}
	Success(ctx, detail)
}

// Update 更新禀议书,子记录整体替换
// @Summary      更新禀议书
// @Tags         禀议书
// @Accept       json
// @Produce      json
// @Param        id      path int                     true "禀议书 ID"
// @Param        request body service.ProposalRequest true "禀议书"
// @Success      200  {object}  Response{data=service.SaveResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /proposals/{id} [put]
func (c *ProposalController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.ProposalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.proposalService.Update(ctx.Request.Context(), id, &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to update proposal", err)
		return
	}
	Success(ctx, result)
}

// UpdateStatus 变更禀议书状态
// @Summary      变更禀议书状态
// @Description  draft→submitted→approved,approved 不可回退
// @Tags         禀议书
// @Accept       json
// @Produce      json
// @Param        id      path int                   true "禀议书 ID"
// @Param        request body service.StatusRequest true "目标状态"
// @Success      200  {object}  Response{data=model.ProposalModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /proposals/{id}/status [patch]
func (c *ProposalController) UpdateStatus(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.StatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	proposal, err := c.proposalService.UpdateStatus(ctx.Request.Context(), id, &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to update proposal status", err)
		return
	}
	Success(ctx, proposal)
}

// Delete 删除禀议书及其子记录
// @Summary      删除禀议书
// @Tags         禀议书
// @Produce      json
// @Param        id   path int true "禀议书 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /proposals/{id} [delete]
func (c *ProposalController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.proposalService.Delete(ctx.Request.Context(), id, actorOf(ctx)); err != nil {
		respondError(ctx, c.logger, "failed to delete proposal", err)
		return
	}
	Success(ctx, gin.H{"proposalId": id})
}

// History 禀议书变更历史
// @Summary      禀议书变更历史
// @Tags         禀议书
// @Produce      json
// @Param        id   path int true "禀议书 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /proposals/{id}/history [get]
func (c *ProposalController) History(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.proposalService.History(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, "failed to get proposal history", err)
		return
	}
	Success(ctx, history)
}
