package handler

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/internal/service"
	"marketplace/pkg/pagination"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves master data. Writes go through the approval gate:
// the response says whether the change landed or is awaiting review.
type CatalogHandler struct {
	catalogService service.CatalogService
	auth           *middleware.Auth
}

func NewCatalogHandler(catalogService service.CatalogService, auth *middleware.Auth) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, auth: auth}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("/api/catalog", h.auth.Authenticate())
	{
		catalog.GET("", h.auth.RequirePermission(model.PermCatalogRead), h.ListEntityTypes)
		catalog.GET("/:entity", h.auth.RequirePermission(model.PermCatalogRead), h.ListEntities)
		catalog.GET("/:entity/:id", h.auth.RequirePermission(model.PermCatalogRead), h.GetEntity)
		catalog.POST("/:entity", h.auth.RequirePermission(model.PermCatalogWrite), h.CreateEntity)
		catalog.PUT("/:entity/:id", h.auth.RequirePermission(model.PermCatalogWrite), h.UpdateEntity)
		catalog.DELETE("/:entity/:id", h.auth.RequirePermission(model.PermCatalogWrite), h.DeleteEntity)
	}
}

// ListEntityTypes returns the entity types the catalog accepts.
// @Summary      List catalog entity types
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]string}
// @Router       /api/catalog [get]
func (h *CatalogHandler) ListEntityTypes(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.catalogService.EntityTypes()))
}

// ListEntities returns one page of an entity table.
// @Summary      List catalog entities
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        entity  path      string  true   "Entity type, e.g. brand"
// @Param        search  query     string  false  "Name contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]object}
// @Failure      400     {object}  response.Response
// @Router       /api/catalog/{entity} [get]
func (h *CatalogHandler) ListEntities(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.catalogService.List(c.Request.Context(), c.Param("entity"), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, items, p.Page, p.Limit, total))
}

// GetEntity returns one row of an entity table.
// @Summary      Get catalog entity
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        entity  path      string  true  "Entity type"
// @Param        id      path      int     true  "Entity ID"
// @Success      200     {object}  response.Response{data=object}
// @Failure      404     {object}  response.Response
// @Router       /api/catalog/{entity}/{id} [get]
func (h *CatalogHandler) GetEntity(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	entity, err := h.catalogService.Get(c.Request.Context(), c.Param("entity"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entity))
}

// CreateEntity creates an entity or files a create request.
// @Summary      Create catalog entity
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        entity   path      string                      true  "Entity type"
// @Param        payload  body      service.MutateCatalogInput  true  "Entity data"
// @Success      201      {object}  response.Response{data=service.MutationResult}
// @Success      202      {object}  response.Response{data=service.MutationResult}
// @Router       /api/catalog/{entity} [post]
func (h *CatalogHandler) CreateEntity(c *gin.Context) {
	h.mutate(c, model.RequestTypeCreate, nil)
}

// UpdateEntity updates an entity or files an update request.
// @Summary      Update catalog entity
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        entity   path      string                      true  "Entity type"
// @Param        id       path      int                         true  "Entity ID"
// @Param        payload  body      service.MutateCatalogInput  true  "Changed fields"
// @Success      200      {object}  response.Response{data=service.MutationResult}
// @Success      202      {object}  response.Response{data=service.MutationResult}
// @Router       /api/catalog/{entity}/{id} [put]
func (h *CatalogHandler) UpdateEntity(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	h.mutate(c, model.RequestTypeUpdate, &id)
}

// DeleteEntity soft deletes an entity or files a delete request.
// @Summary      Delete catalog entity
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        entity  path      string  true  "Entity type"
// @Param        id      path      int     true  "Entity ID"
// @Success      200     {object}  response.Response{data=service.MutationResult}
// @Success      202     {object}  response.Response{data=service.MutationResult}
// @Router       /api/catalog/{entity}/{id} [delete]
func (h *CatalogHandler) DeleteEntity(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	h.mutate(c, model.RequestTypeDelete, &id)
}

func (h *CatalogHandler) mutate(c *gin.Context, requestType string, id *uint) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var in service.MutateCatalogInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
	}
	in.RequestType = requestType
	in.EntityType = c.Param("entity")
	in.EntityID = id

	result, err := h.catalogService.Mutate(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	switch {
	case !result.Applied:
		status = http.StatusAccepted
	case requestType == model.RequestTypeCreate:
		status = http.StatusCreated
	}
	c.JSON(status, response.Success(status, result))
}
