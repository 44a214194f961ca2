package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/service"
)

// SchemaHandler serves schema introspection.
type SchemaHandler struct {
	schemaService *service.SchemaService
}

func NewSchemaHandler(schemaService *service.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService}
}

// GetSchema returns the summary, or the whole document with ?full=true.
func (h *SchemaHandler) GetSchema(c *gin.Context) {
	if c.Query("full") == "true" {
		Success(c, h.schemaService.Dump())
		return
	}
	Success(c, h.schemaService.Summary())
}

func (h *SchemaHandler) ListObjectTypes(c *gin.Context) {
	Success(c, h.schemaService.ListObjectTypes())
}

func (h *SchemaHandler) GetObjectType(c *gin.Context) {
	objectType, err := h.schemaService.GetObjectType(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, objectType)
}

func (h *SchemaHandler) GetOutgoingLinks(c *gin.Context) {
	links, err := h.schemaService.GetOutgoingLinks(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, links)
}

func (h *SchemaHandler) GetIncomingLinks(c *gin.Context) {
	links, err := h.schemaService.GetIncomingLinks(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, links)
}

func (h *SchemaHandler) ListLinkTypes(c *gin.Context) {
	Success(c, h.schemaService.ListLinkTypes())
}

func (h *SchemaHandler) GetLinkType(c *gin.Context) {
	linkType, err := h.schemaService.GetLinkType(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, linkType)
}

func (h *SchemaHandler) ListActions(c *gin.Context) {
	Success(c, h.schemaService.ListActions())
}

func (h *SchemaHandler) GetAction(c *gin.Context) {
	def, err := h.schemaService.GetAction(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, def)
}

func (h *SchemaHandler) ListFunctions(c *gin.Context) {
	Success(c, h.schemaService.ListFunctions())
}

func (h *SchemaHandler) GetFunction(c *gin.Context) {
	def, err := h.schemaService.GetFunction(c.Param("name"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, def)
}

func (h *SchemaHandler) ListDomains(c *gin.Context) {
	Success(c, h.schemaService.ListDomains())
}
