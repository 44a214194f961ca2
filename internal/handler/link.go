package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/service"
)

// LinkHandler serves relationship traversal.
type LinkHandler struct {
	linkService *service.LinkService
}

func NewLinkHandler(linkService *service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

// GetConnectedInstances returns the instances on the other end of a link.
func (h *LinkHandler) GetConnectedInstances(c *gin.Context) {
	dir, err := service.ParseDirection(c.Query("direction"))
	if err != nil {
		Fail(c, err)
		return
	}
	instances, err := h.linkService.GetConnectedInstances(c.Param("object_type"), c.Param("id"), c.Param("link_type"), dir)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{
		"link":      c.Param("link_type"),
		"direction": dir,
		"instances": instances,
	})
}
