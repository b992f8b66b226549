package handler

import (
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/service"
	"marketplace/pkg/pagination"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InventoryHandler struct {
	inventoryService service.InventoryService
	auth             *middleware.Auth
}

func NewInventoryHandler(inventoryService service.InventoryService, auth *middleware.Auth) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, auth: auth}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := h.auth.RequirePermission(model.PermInventoryRead)
	write := h.auth.RequirePermission(model.PermInventoryWrite)

	vendor := router.Group("/api/vendors/:vendorId/inventory", h.auth.Authenticate())
	{
		vendor.GET("", read, h.ListInventory)
		vendor.POST("", write, h.AddInventory)
		vendor.GET("/:id", read, h.GetInventory)
		vendor.POST("/:id/restock", write, h.Restock)
		vendor.PUT("/:id/allocation", write, h.AdjustAllocation)
		vendor.DELETE("/:id", write, h.RemoveInventory)
		vendor.GET("/:id/logs", read, h.ListLogs)
	}

	views := router.Group("/api/inventory", h.auth.Authenticate(), read)
	{
		views.GET("/low-stock", h.LowStock)
		views.GET("/summary", h.VendorSummary)
		views.GET("/aggregated", h.Aggregated)
		views.GET("/export", h.ExportAggregated)
	}
}

// ListInventory returns a vendor's inventory rows.
// @Summary      List vendor inventory
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendorId   path      string  true   "Vendor ID"
// @Param        low_stock  query     bool    false  "Only rows at or below their threshold"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=[]model.VendorInventory}
// @Failure      403        {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory [get]
func (h *InventoryHandler) ListInventory(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	lowStockOnly := c.Query("low_stock") == "true"

	items, total, err := h.inventoryService.List(c.Request.Context(), actor, vendorID, lowStockOnly, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, items, p.Page, p.Limit, total))
}

// AddInventory starts tracking a product for a vendor.
// @Summary      Add product to vendor inventory
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        vendorId  path      string                     true  "Vendor ID"
// @Param        payload   body      service.AddInventoryInput  true  "Initial stock"
// @Success      201       {object}  response.Response{data=model.VendorInventory}
// @Failure      409       {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory [post]
func (h *InventoryHandler) AddInventory(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	var req service.AddInventoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inv, err := h.inventoryService.Add(c.Request.Context(), actor, vendorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// GetInventory returns one inventory row.
// @Summary      Get inventory row
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendorId  path      string  true  "Vendor ID"
// @Param        id        path      int     true  "Inventory ID"
// @Success      200       {object}  response.Response{data=model.VendorInventory}
// @Failure      404       {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory/{id} [get]
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.inventoryService.Get(c.Request.Context(), actor, vendorID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// Restock adds units and distributes them across channels.
// @Summary      Restock inventory
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        vendorId  path      string                true  "Vendor ID"
// @Param        id        path      int                   true  "Inventory ID"
// @Param        payload   body      service.RestockInput  true  "Restock"
// @Success      200       {object}  response.Response{data=model.VendorInventory}
// @Failure      400       {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory/{id}/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req service.RestockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inv, err := h.inventoryService.Restock(c.Request.Context(), actor, vendorID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// AdjustAllocation moves stock between the online and offline channels.
// @Summary      Reallocate stock
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        vendorId  path      string                         true  "Vendor ID"
// @Param        id        path      int                            true  "Inventory ID"
// @Param        payload   body      service.AdjustAllocationInput  true  "New split"
// @Success      200       {object}  response.Response{data=model.VendorInventory}
// @Failure      400       {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory/{id}/allocation [put]
func (h *InventoryHandler) AdjustAllocation(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req service.AdjustAllocationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inv, err := h.inventoryService.AdjustAllocation(c.Request.Context(), actor, vendorID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, inv))
}

// RemoveInventory stops tracking a product. Only empty rows can be removed.
// @Summary      Remove inventory row
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendorId  path      string  true  "Vendor ID"
// @Param        id        path      int     true  "Inventory ID"
// @Success      200       {object}  response.Response
// @Failure      400       {object}  response.Response
// @Router       /api/vendors/{vendorId}/inventory/{id} [delete]
func (h *InventoryHandler) RemoveInventory(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.inventoryService.Remove(c.Request.Context(), actor, vendorID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Inventory removed"}))
}

// ListLogs returns the stock movement log of one row, newest first.
// @Summary      List inventory logs
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendorId  path      string  true   "Vendor ID"
// @Param        id        path      int     true   "Inventory ID"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Items per page (default 20)"
// @Success      200       {object}  response.Response{data=[]model.InventoryLog}
// @Router       /api/vendors/{vendorId}/inventory/{id}/logs [get]
func (h *InventoryHandler) ListLogs(c *gin.Context) {
	actor, vendorID, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	p := pagination.Parse(c)

	logs, total, err := h.inventoryService.Logs(c.Request.Context(), actor, vendorID, id, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, p.Page, p.Limit, total))
}

// LowStock lists rows at or below their threshold. Vendors only see their own.
// @Summary      Low stock report
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendor_id  query     string  false  "Vendor ID"
// @Success      200        {object}  response.Response{data=[]model.VendorInventory}
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	vendorID, ok := h.viewVendor(c)
	if !ok {
		return
	}
	items, err := h.inventoryService.LowStock(c.Request.Context(), vendorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// VendorSummary returns per-vendor stock totals.
// @Summary      Vendor stock summary
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        vendor_id  query     string  false  "Vendor ID"
// @Success      200        {object}  response.Response{data=[]model.VendorStockSummary}
// @Router       /api/inventory/summary [get]
func (h *InventoryHandler) VendorSummary(c *gin.Context) {
	vendorID, ok := h.viewVendor(c)
	if !ok {
		return
	}
	rows, err := h.inventoryService.VendorSummary(c.Request.Context(), vendorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// Aggregated returns platform-wide stock per product.
// @Summary      Aggregated stock per product
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.ProductStockAggregate}
// @Failure      403  {object}  response.Response
// @Router       /api/inventory/aggregated [get]
func (h *InventoryHandler) Aggregated(c *gin.Context) {
	if !h.requirePlatformView(c) {
		return
	}
	rows, err := h.inventoryService.Aggregated(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// ExportAggregated downloads the aggregated view as an xlsx workbook.
// @Summary      Export aggregated stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}    file
// @Failure      403  {object}  response.Response
// @Router       /api/inventory/export [get]
func (h *InventoryHandler) ExportAggregated(c *gin.Context) {
	if !h.requirePlatformView(c) {
		return
	}
	data, err := service.ExportAggregatedXLSX(c.Request.Context(), h.inventoryService)
	if err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("inventory_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *InventoryHandler) scope(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, ok := mustActor(c)
	if !ok {
		return model.Actor{}, uuid.Nil, false
	}
	vendorID, ok := uuidParam(c, "vendorId")
	if !ok {
		return model.Actor{}, uuid.Nil, false
	}
	return actor, vendorID, true
}

// viewVendor reads the optional vendor_id filter. Vendors are pinned to
// their own id.
func (h *InventoryHandler) viewVendor(c *gin.Context) (*uuid.UUID, bool) {
	actor, ok := mustActor(c)
	if !ok {
		return nil, false
	}
	if actor.IsVendor() {
		id := actor.ID
		return &id, true
	}
	return optionalUUIDQuery(c, "vendor_id")
}

func (h *InventoryHandler) requirePlatformView(c *gin.Context) bool {
	actor, ok := mustActor(c)
	if !ok {
		return false
	}
	if actor.IsVendor() {
		respondError(c, apperror.Forbidden("platform-wide inventory is not available to vendors"))
		return false
	}
	return true
}
