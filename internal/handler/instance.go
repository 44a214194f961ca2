package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/service"
)

// InstanceHandler serves object reads.
type InstanceHandler struct {
	instanceService *service.InstanceService
}

func NewInstanceHandler(instanceService *service.InstanceService) *InstanceHandler {
	return &InstanceHandler{instanceService: instanceService}
}

// GetInstance returns one instance.
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	instance, err := h.instanceService.GetInstance(c.Param("object_type"), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, instance)
}

// ListInstances returns a page of instances filtered by ?field=value.
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	page, err := h.instanceService.ListInstances(c.Param("object_type"), c.Request.URL.Query())
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, page)
}
