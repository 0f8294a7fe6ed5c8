package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/mautops/budget-gin/internal/service"
	"github.com/sirupsen/logrus"
)

// BudgetController 事业预算控制器
type BudgetController struct {
	budgetService service.BudgetService
	logger        *logrus.Logger
}

// NewBudgetController 创建事业预算控制器
func NewBudgetController(budgetService service.BudgetService, logger *logrus.Logger) *BudgetController {
	return &BudgetController{
		budgetService: budgetService,
		logger:        logger,
	}
}

// budgetFilter 解析预算查询条件
func budgetFilter(ctx *gin.Context) (*repository.BudgetFilter, error) {
	year, err := queryInt(ctx, "budget_year")
	if err != nil {
		return nil, err
	}
	page, pageSize := pageParams(ctx)
	return &repository.BudgetFilter{
		BudgetYear: year,
		Department: queryString(ctx, "department"),
		Status:     queryString(ctx, "status"),
		Keyword:    queryString(ctx, "keyword"),
		SortBy:     ctx.Query("sort_by"),
		Order:      ctx.Query("order"),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// List 查询事业预算列表
// @Summary      查询事业预算列表
// @Description  返回存储字段及按已批准禀议书汇总的执行额
// @Tags         事业预算
// @Produce      json
// @Param        budget_year  query int    false "预算年度"
// @Param        department   query string false "发起或执行部门"
// @Param        status       query string false "状态"
// @Param        keyword      query string false "项目名称关键字"
// @Param        page         query int    false "页码" default(1)
// @Param        page_size    query int    false "每页数量" default(20)
// @Success      200  {object}  PaginatedResponse
// @Router       /business-budgets [get]
func (c *BudgetController) List(ctx *gin.Context) {
	filter, err := budgetFilter(ctx)
	if err != nil {
		respondError(ctx, c.logger, "invalid query", err)
		return
	}

	budgets, total, err := c.budgetService.List(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, "failed to list budgets", err)
		return
	}
	Paginated(ctx, budgets, NewPaginationInfo(filter.Page, filter.PageSize, total))
}

// Statistics 预算执行汇总
// @Summary      预算执行汇总
// @Description  总体、按部门、按年度汇总预算与执行额
// @Tags         事业预算
// @Produce      json
// @Success      200  {object}  Response{data=execution.Portfolio}
// @Router       /business-budgets/statistics [get]
func (c *BudgetController) Statistics(ctx *gin.Context) {
	filter, err := budgetFilter(ctx)
	if err != nil {
		respondError(ctx, c.logger, "invalid query", err)
		return
	}

	portfolio, err := c.budgetService.Statistics(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, c.logger, "failed to compute statistics", err)
		return
	}
	Success(ctx, portfolio)
}

// Get 获取事业预算
// @Summary      获取事业预算
// @Tags         事业预算
// @Produce      json
// @Param        id   path int true "预算 ID"
// @Success      200  {object}  Response{data=service.BudgetView}
// @Failure      404  {object}  ErrorResponse
// @Router       /business-budgets/{id} [get]
func (c *BudgetController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	budget, err := c.budgetService.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, "failed to get budget", err)
		return
	}
	Success(ctx, budget)
}

// Create 登记事业预算
// @Summary      登记事业预算
// @Tags         事业预算
// @Accept       json
// @Produce      json
// @Param        request body service.BudgetRequest true "预算"
// @Success      201  {object}  Response{data=service.BudgetView}
// @Failure      400  {object}  ErrorResponse
// @Router       /business-budgets [post]
func (c *BudgetController) Create(ctx *gin.Context) {
	var req service.BudgetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	budget, err := c.budgetService.Create(ctx.Request.Context(), &req, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to create budget", err)
		return
	}
	Created(ctx, budget)
}

// Update 更新事业预算
// 请求体为完整字段集合,缺省字段按默认值处理,每个变化的字段记录一条历史
// @Summary      更新事业预算
// @Tags         事业预算
// @Accept       json
// @Produce      json
// @Param        id      path int                    true "预算 ID"
// @Param        request body map[string]interface{} true "预算字段"
// @Success      200  {object}  Response{data=service.BudgetUpdateResult}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /business-budgets/{id} [put]
func (c *BudgetController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	fields := make(map[string]interface{})
	if err := ctx.ShouldBindJSON(&fields); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.budgetService.Update(ctx.Request.Context(), id, fields, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to update budget", err)
		return
	}
	Success(ctx, result)
}

// Delete 删除事业预算
// @Summary      删除事业预算
// @Description  被禀议书引用时返回 409,force=true 时解除引用后删除
// @Tags         事业预算
// @Produce      json
// @Param        id     path  int  true  "预算 ID"
// @Param        force  query bool false "强制删除"
// @Success      200  {object}  Response{data=service.BudgetDeleteResult}
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /business-budgets/{id} [delete]
func (c *BudgetController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(ctx.DefaultQuery("force", "false"))

	result, err := c.budgetService.Delete(ctx.Request.Context(), id, force, actorOf(ctx))
	if err != nil {
		respondError(ctx, c.logger, "failed to delete budget", err)
		return
	}
	Success(ctx, result)
}

// History 事业预算变更历史
// @Summary      事业预算变更历史
// @Tags         事业预算
// @Produce      json
// @Param        id   path int true "预算 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Router       /business-budgets/{id}/history [get]
func (c *BudgetController) History(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.budgetService.History(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, c.logger, "failed to get budget history", err)
		return
	}
	Success(ctx, history)
}
