package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/internal/middleware"
	"github.com/tas-project/tas-api/internal/models"
	appErrors "github.com/tas-project/tas-api/pkg/errors"
)

type suggestionServiceMock struct {
	listStatus models.SuggestionStatus
	decideErr  error
	decided    []struct {
		id     string
		action string
		actor  string
	}
	purgedStatus models.SuggestionStatus
	purged       int64
}

func (m *suggestionServiceMock) List(_ context.Context, status models.SuggestionStatus, page, pageSize int) ([]models.MappingSuggestion, *models.Pagination, error) {
	m.listStatus = status
	return []models.MappingSuggestion{
		{ID: "sg-1", SrcLabel: "Analyse Num.", ProposedTargetCode: "MATH201", Status: models.SuggestionPending},
	}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *suggestionServiceMock) Decide(_ context.Context, id, action, _, actor string) (*models.MappingSuggestion, error) {
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	m.decided = append(m.decided, struct {
		id     string
		action string
		actor  string
	}{id, action, actor})
	return &models.MappingSuggestion{ID: id, Status: models.SuggestionAccepted}, nil
}

func (m *suggestionServiceMock) Purge(_ context.Context, status models.SuggestionStatus) (int64, error) {
	m.purgedStatus = status
	return m.purged, nil
}

func TestSuggestionHandlerListFiltersByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &suggestionServiceMock{}
	handler := NewSuggestionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/admin/suggestions?status=PENDING&page=2&page_size=10", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SuggestionPending, mock.listStatus)
	var envelope struct {
		Data       []models.MappingSuggestion `json:"data"`
		Pagination *models.Pagination         `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "sg-1", envelope.Data[0].ID)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 2, envelope.Pagination.Page)
}

func TestSuggestionHandlerDecideStampsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &suggestionServiceMock{}
	handler := NewSuggestionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.SuggestionDecisionRequest{Action: "accept", Comment: "looks right"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/admin/suggestions/sg-1/decision", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", FullName: "Karim D.", Role: models.RoleAdmin})

	handler.Decide(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.decided, 1)
	assert.Equal(t, "sg-1", mock.decided[0].id)
	assert.Equal(t, "accept", mock.decided[0].action)
	assert.Equal(t, "Karim D.", mock.decided[0].actor)
}

func TestSuggestionHandlerDecideAlreadyDecided(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &suggestionServiceMock{decideErr: appErrors.ErrDecided}
	handler := NewSuggestionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.SuggestionDecisionRequest{Action: "reject"})
	c.Request, _ = http.NewRequest(http.MethodPost, "/admin/suggestions/sg-1/decision", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}

	handler.Decide(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSuggestionHandlerDecideInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &suggestionServiceMock{}
	handler := NewSuggestionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/admin/suggestions/sg-1/decision", bytes.NewReader([]byte(`invalid`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Decide(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.decided)
}

func TestSuggestionHandlerPurge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &suggestionServiceMock{purged: 4}
	handler := NewSuggestionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/admin/suggestions?status=REJECTED", nil)

	handler.Purge(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SuggestionRejected, mock.purgedStatus)
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, int64(4), envelope.Data["deleted"])
}
