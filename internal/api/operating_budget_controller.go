package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/sirupsen/logrus"
)

// OperatingBudgetController 运营预算控制器
type OperatingBudgetController struct {
	operatingService service.OperatingBudgetService
	logger           *logrus.Logger
}

// NewOperatingBudgetController 创建运营预算控制器
func NewOperatingBudgetController(operatingService service.OperatingBudgetService, logger *logrus.Logger) *OperatingBudgetController {
	return &OperatingBudgetController{
		operatingService: operatingService,
		logger:           logger,
	}
}

// fromProposalRequest 由禀议书生成执行记录的请求
type fromProposalRequest struct {
	ProposalID uint `json:"proposalId" binding:"required"`
	service.ExecutionRequest
}

// ListBudgets 查询运营预算
// @Summary      查询运营预算
// @Tags         运营预算
// @Produce      json
// @Param        fiscal_year query int false "会计年度"
// @Success      200  {object}  Response
// @Router       /operating-budgets [get]
func (c *OperatingBudgetController) ListBudgets(ctx *gin.Context) {
	year, err := queryInt(ctx, "fiscal_year")
	if err != nil {
		respondError(ctx, c.logger, "invalid query", err)
		return
	}

	budgets, err := c.operatingService.ListBudgets(ctx.Request.Context(), year)
	if err != nil {
		respondError(ctx, c.logger, "failed to list operating budgets", err)
		return
	}
	Success(ctx, budgets)
}

// CreateBudget 登记运营预算
// @Summary      登记运营预算
// @Tags         运营预算
// @Accept       json
// @Produce      json
// @Param        request body service.OperatingBudgetRequest true "运营预算"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /operating-budgets [post]
func (c *OperatingBudgetController) CreateBudget(ctx *gin.Context) {
	var req service.OperatingBudgetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	budget, err := c.operatingService.CreateBudget(ctx.Request.Context(), &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to create operating budget", err)
		return
	}
	Created(ctx, budget)
}

// ListExecutions 查询执行记录
// @Summary      查询运营预算执行记录
// @Tags         运营预算
// @Produce      json
// @Param        id   path int true "运营预算 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /operating-budgets/{id}/executions [get]
func (c *OperatingBudgetController) ListExecutions(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	executions, err := c.operatingService.ListExecutions(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, "failed to list executions", err)
		return
	}
	Success(ctx, executions)
}

// AddExecution 登记执行记录
// @Summary      登记运营预算执行记录
// @Tags         运营预算
// @Accept       json
// @Produce      json
// @Param        id      path int                      true "运营预算 ID"
// @Param        request body service.ExecutionRequest true "执行记录"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /operating-budgets/{id}/executions [post]
func (c *OperatingBudgetController) AddExecution(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.ExecutionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	execution, err := c.operatingService.AddExecution(ctx.Request.Context(), id, &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to add execution", err)
		return
	}
	Created(ctx, execution)
}

// AddExecutionFromProposal 由已批准禀议书生成执行记录
// @Summary      由禀议书生成执行记录
// @Description  复制禀议书标题、科目和金额,生成后这三项不可修改
// @Tags         运营预算
// @Accept       json
// @Produce      json
// @Param        id      path int                 true "运营预算 ID"
// @Param        request body fromProposalRequest true "禀议书 ID 及补充字段"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /operating-budgets/{id}/executions/from-proposal [post]
func (c *OperatingBudgetController) AddExecutionFromProposal(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req fromProposalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	execution, err := c.operatingService.AddExecutionFromProposal(ctx.Request.Context(), id, req.ProposalID, &req.ExecutionRequest, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to add execution from proposal", err)
		return
	}
	Created(ctx, execution)
}

// UpdateExecution 修改执行记录
// @Summary      修改运营预算执行记录
// @Tags         运营预算
// @Accept       json
// @Produce      json
// @Param        executionId path int                      true "执行记录 ID"
// @Param        request     body service.ExecutionRequest true "修改字段"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /operating-budgets/executions/{executionId} [put]
func (c *OperatingBudgetController) UpdateExecution(ctx *gin.Context) {
	id, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}
	var req service.ExecutionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	execution, err := c.operatingService.UpdateExecution(ctx.Request.Context(), id, &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to update execution", err)
		return
	}
	Success(ctx, execution)
}

// DeleteExecution 删除执行记录
// @Summary      删除运营预算执行记录
// @Tags         运营预算
// @Produce      json
// @Param        executionId path int true "执行记录 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /operating-budgets/executions/{executionId} [delete]
func (c *OperatingBudgetController) DeleteExecution(ctx *gin.Context) {
	id, ok := pathID(ctx, "executionId")
	if !ok {
		return
	}

	if err := c.operatingService.DeleteExecution(ctx.Request.Context(), id, actorOf(ctx)); err != nil {
		respondError(ctx, c.logger, "failed to delete execution", err)
		return
	}
	Success(ctx, gin.H{"executionId": id})
}
