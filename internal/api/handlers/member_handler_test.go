package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"eccnsw/memberdesk/internal/api/handlers"
	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/utils"
)

func newMemberTestRouter(memberSvc *MockMemberService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewMemberHandler(memberSvc)
	r := gin.New()
	r.GET("/v1/members", handler.ListMembers)
	r.POST("/v1/members", handler.CreateMember)
	r.GET("/v1/members/:id", handler.GetMember)
	r.DELETE("/v1/members/:id", handler.DeleteMember)
	r.POST("/v1/members/:id/cancellation/:label", handler.ToggleCancellation)
	r.POST("/v1/members/:id/archive", handler.ArchiveMember)
	return r
}

func TestMemberHandler_ListMembers_WithStatuses(t *testing.T) {
	mockMemberSvc := new(MockMemberService)
	r := newMemberTestRouter(mockMemberSvc)

	fy := models.FinancialYearForStartYear(2023)
	augmented := []engine.AugmentedMember{
		{
			Member: models.Member{Base: models.NewBase(), Name: "Tilba Tigers"},
			Status: models.MemberStatusPaid,
		},
	}
	mockMemberSvc.On("ListWithStatus", mock.Anything, fy).Return(augmented, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/members?fy=2023-2024", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody struct {
		Data          []engine.AugmentedMember `json:"data"`
		FinancialYear string                   `json:"financial_year"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, "2023-2024", respBody.FinancialYear)
	assert.Len(t, respBody.Data, 1)
	assert.Equal(t, models.MemberStatusPaid, respBody.Data[0].Status)
	mockMemberSvc.AssertExpectations(t)
}

func TestMemberHandler_ListMembers_BadYearLabel(t *testing.T) {
	r := newMemberTestRouter(new(MockMemberService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/members?fy=2023", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemberHandler_CreateMember(t *testing.T) {
	mockMemberSvc := new(MockMemberService)
	r := newMemberTestRouter(mockMemberSvc)

	levelID := utils.NewSixID()
	created := &models.Member{Base: models.NewBase(), Name: "Candelo Crows"}
	invoice := &models.Invoice{Base: models.NewBase(), MemberID: created.ID, Amount: 88}

	mockMemberSvc.On("Create", mock.Anything, mock.MatchedBy(func(m models.Member) bool {
		return m.Name == "Candelo Crows" && m.MembershipLevelID == levelID
	})).Return(created, invoice, nil)

	body, _ := json.Marshal(gin.H{
		"name":                "Candelo Crows",
		"membership_level_id": levelID.String(),
		"start_date":          time.Date(2023, time.August, 1, 0, 0, 0, 0, time.UTC),
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/members", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var respBody struct {
		Member  models.Member  `json:"member"`
		Invoice models.Invoice `json:"invoice"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, created.ID, respBody.Member.ID)
	assert.Equal(t, 88.0, respBody.Invoice.Amount)
	mockMemberSvc.AssertExpectations(t)
}

func TestMemberHandler_GetMember_NotFound(t *testing.T) {
	mockMemberSvc := new(MockMemberService)
	r := newMemberTestRouter(mockMemberSvc)

	memberID := utils.NewSixID()
	mockMemberSvc.On("FindByID", mock.Anything, memberID).Return(nil, services.ErrNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/members/"+memberID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockMemberSvc.AssertExpectations(t)
}

func TestMemberHandler_ToggleCancellation(t *testing.T) {
	mockMemberSvc := new(MockMemberService)
	r := newMemberTestRouter(mockMemberSvc)

	member := &models.Member{
		Base:                    models.NewBase(),
		Name:                    "Bermagui Blues",
		CancelledFinancialYears: []string{"2024-2025"},
	}
	mockMemberSvc.On("ToggleYearCancellation", mock.Anything, member.ID, "2024-2025").Return(member, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/members/"+member.ID.String()+"/cancellation/2024-2025", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Malformed labels never reach the service
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/v1/members/"+member.ID.String()+"/cancellation/someday", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockMemberSvc.AssertExpectations(t)
}

func TestMemberHandler_DeleteMember(t *testing.T) {
	mockMemberSvc := new(MockMemberService)
	r := newMemberTestRouter(mockMemberSvc)

	memberID := utils.NewSixID()
	mockMemberSvc.On("Delete", mock.Anything, memberID).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/members/"+memberID.String(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockMemberSvc.AssertExpectations(t)
}
