package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/utils"
)

// MemberHandler handles REST requests for members.
type MemberHandler struct {
	memberService services.IMemberService
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(memberService services.IMemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// memberInput is the editable subset of a member accepted on create/update.
type memberInput struct {
	Name              string            `json:"name" binding:"required"`
	MembershipLevelID string            `json:"membership_level_id" binding:"required"`
	StartDate         time.Time         `json:"start_date" binding:"required"`
	ContactName       string            `json:"contact_name"`
	Telephone         string            `json:"telephone"`
	PostalAddress     string            `json:"postal_address"`
	Delegates         []models.Delegate `json:"delegates"`
}

func (in *memberInput) toMember() (models.Member, error) {
	levelID, err := utils.ParseSixID(in.MembershipLevelID)
	if err != nil {
		return models.Member{}, err
	}
	return models.Member{
		Name:              in.Name,
		MembershipLevelID: levelID,
		StartDate:         in.StartDate,
		ContactName:       in.ContactName,
		Telephone:         in.Telephone,
		PostalAddress:     in.PostalAddress,
		Delegates:         in.Delegates,
	}, nil
}

// ListMembers handles GET /v1/members.
// With ?fy=<label> the response carries projected payment statuses.
func (h *MemberHandler) ListMembers(c *gin.Context) {
	fyLabel := c.Query("fy")
	if fyLabel != "" {
		fy, err := models.FinancialYearForLabel(fyLabel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
			return
		}
		augmented, err := h.memberService.ListWithStatus(c.Request.Context(), fy)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": augmented, "financial_year": fy.Label})
		return
	}

	includeArchived := c.Query("include_archived") == "true"
	members, err := h.memberService.List(c.Request.Context(), includeArchived)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

// GetMember handles GET /v1/members/:id.
func (h *MemberHandler) GetMember(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	member, err := h.memberService.FindByID(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// CreateMember handles POST /v1/members. The response carries the created
// member together with their first invoice.
func (h *MemberHandler) CreateMember(c *gin.Context) {
	var input memberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	member, err := input.toMember()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership level ID"})
		return
	}

	created, invoice, err := h.memberService.Create(c.Request.Context(), member)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": created, "invoice": invoice})
}

// UpdateMember handles PUT /v1/members/:id.
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var input memberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	member, err := input.toMember()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership level ID"})
		return
	}
	member.SetID(memberID)

	// End date is maintained by the payment flow but remains editable.
	existing, err := h.memberService.FindByID(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	member.EndDate = existing.EndDate

	updated, err := h.memberService.Update(c.Request.Context(), member)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteMember handles DELETE /v1/members/:id.
func (h *MemberHandler) DeleteMember(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	if err := h.memberService.Delete(c.Request.Context(), memberID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleCancellation handles POST /v1/members/:id/cancellation/:label.
func (h *MemberHandler) ToggleCancellation(c *gin.Context) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}
	label := c.Param("label")
	if _, err := models.FinancialYearForLabel(label); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid financial year label"})
		return
	}

	member, err := h.memberService.ToggleYearCancellation(c.Request.Context(), memberID, label)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// ArchiveMember handles POST /v1/members/:id/archive.
func (h *MemberHandler) ArchiveMember(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveMember handles POST /v1/members/:id/unarchive.
func (h *MemberHandler) UnarchiveMember(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *MemberHandler) setArchived(c *gin.Context, archived bool) {
	memberID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	var member *models.Member
	if archived {
		member, err = h.memberService.Archive(c.Request.Context(), memberID)
	} else {
		member, err = h.memberService.Unarchive(c.Request.Context(), memberID)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}
