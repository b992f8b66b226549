package handler

import (
	"net/http"

	"marketplace/internal/apperror"
	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/internal/service"
	"marketplace/pkg/pagination"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	auth            *middleware.Auth
}

func NewApprovalHandler(approvalService service.ApprovalService, auth *middleware.Auth) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auth: auth}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals", h.auth.Authenticate())
	{
		approvals.GET("", h.auth.RequirePermission(model.PermApprovalsRead), h.ListApprovalRequests)
		approvals.GET("/mine", h.auth.RequirePermission(model.PermApprovalsRead), h.ListMyRequests)
		approvals.GET("/pending-count", h.auth.RequirePermission(model.PermApprovalsReview), h.PendingCount)
		approvals.GET("/:id", h.auth.RequirePermission(model.PermApprovalsRead), h.GetApprovalRequest)
		approvals.POST("", h.auth.RequirePermission(model.PermCatalogWrite), h.CreateApprovalRequest)
		approvals.POST("/:id/review", h.auth.RequirePermission(model.PermApprovalsReview), h.ReviewRequest)
		approvals.POST("/:id/apply", h.auth.RequirePermission(model.PermApprovalsReview), h.ApplyRequest)
		approvals.POST("/:id/cancel", h.auth.RequirePermission(model.PermApprovalsRead), h.CancelRequest)
	}
}

// ListApprovalRequests returns approval requests filtered by status, entity
// and request type. Actors who cannot review only see their own requests.
// @Summary      List approval requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status        query     string  false  "pending, approved, rejected or cancelled"
// @Param        entity_type   query     string  false  "Entity type, e.g. brand"
// @Param        request_type  query     string  false  "create, update or delete"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=[]model.ApprovalRequest}
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListApprovalRequests(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	requestedBy, ok := optionalUUIDQuery(c, "requested_by")
	if !ok {
		return
	}
	if !actor.HasPermission(model.PermApprovalsReview) {
		requestedBy = &actor.ID
	}
	h.list(c, requestedBy)
}

// ListMyRequests returns the caller's own approval requests.
// @Summary      List my approval requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Success      200     {object}  response.Response{data=[]model.ApprovalRequest}
// @Router       /api/approvals/mine [get]
func (h *ApprovalHandler) ListMyRequests(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	h.list(c, &actor.ID)
}

func (h *ApprovalHandler) list(c *gin.Context, requestedBy *uuid.UUID) {
	p := pagination.Parse(c)
	filter := repository.ApprovalFilter{
		Status:      c.Query("status"),
		EntityType:  c.Query("entity_type"),
		RequestType: c.Query("request_type"),
		RequestedBy: requestedBy,
		Page:        p.Page,
		Limit:       p.Limit,
	}

	requests, total, err := h.approvalService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, requests, p.Page, p.Limit, total))
}

// PendingCount returns how many requests await review.
// @Summary      Count pending approval requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/approvals/pending-count [get]
func (h *ApprovalHandler) PendingCount(c *gin.Context) {
	count, err := h.approvalService.PendingCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"pending": count}))
}

// GetApprovalRequest returns one request with its history.
// @Summary      Get approval request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Approval request ID"
// @Success      200  {object}  response.Response{data=model.ApprovalRequest}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetApprovalRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	req, err := h.approvalService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.RequestedBy != actor.ID && !actor.HasPermission(model.PermApprovalsReview) {
		respondError(c, apperror.Forbidden("approval request %d belongs to another user", id))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, req))
}

// CreateApprovalRequest files a change request on behalf of the caller.
// @Summary      Create approval request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateApprovalInput  true  "Request"
// @Success      201      {object}  response.Response{data=model.ApprovalRequest}
// @Failure      400      {object}  response.Response
// @Router       /api/approvals [post]
func (h *ApprovalHandler) CreateApprovalRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req service.CreateApprovalInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.RequestedBy = actor.ID
	req.CurrentData = nil

	created, err := h.approvalService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// ReviewRequest approves or rejects a pending request. Approval applies the
// change immediately; a failed apply leaves the request approved and
// retryable through /apply.
// @Summary      Review approval request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true  "Approval request ID"
// @Param        payload  body      service.ReviewInput  true  "Decision"
// @Success      200      {object}  response.Response{data=model.ApprovalRequest}
// @Failure      422      {object}  response.Response
// @Router       /api/approvals/{id}/review [post]
func (h *ApprovalHandler) ReviewRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req service.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reviewed, err := h.approvalService.Review(c.Request.Context(), id, actor.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, reviewed))
}

// ApplyRequest writes an approved change to its entity table.
// @Summary      Apply approved request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Approval request ID"
// @Success      200  {object}  response.Response{data=object}
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/approvals/{id}/apply [post]
func (h *ApprovalHandler) ApplyRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	entity, err := h.approvalService.Apply(c.Request.Context(), id, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entity))
}

// CancelRequest withdraws the caller's own pending request.
// @Summary      Cancel approval request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true   "Approval request ID"
// @Param        payload  body      service.CancelInput  false  "Reason"
// @Success      200      {object}  response.Response{data=model.ApprovalRequest}
// @Failure      403      {object}  response.Response
// @Router       /api/approvals/{id}/cancel [post]
func (h *ApprovalHandler) CancelRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req service.CancelInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	cancelled, err := h.approvalService.Cancel(c.Request.Context(), id, actor.ID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, cancelled))
}
