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
)

type acceptanceServiceMock struct {
	rule       models.AcceptanceRule
	updated    []int
	updateFail error
}

func (m *acceptanceServiceMock) Rule(context.Context) (*models.AcceptanceRule, error) {
	copied := m.rule
	return &copied, nil
}

func (m *acceptanceServiceMock) UpdateThreshold(_ context.Context, newThreshold int) (*models.AcceptanceRule, error) {
	if m.updateFail != nil {
		return nil, m.updateFail
	}
	m.updated = append(m.updated, newThreshold)
	copied := m.rule
	copied.ThresholdCount = newThreshold
	return &copied, nil
}

func TestAcceptanceHandlerRule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAcceptanceHandler(&acceptanceServiceMock{rule: models.AcceptanceRule{ID: 1, ThresholdCount: 3, TargetCount: 12}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/admin/acceptance-rule", nil)

	handler.Rule(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.AcceptanceRule `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.ThresholdCount)
	assert.Equal(t, 12, envelope.Data.TargetCount)
}

func TestAcceptanceHandlerUpdateThreshold(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &acceptanceServiceMock{rule: models.AcceptanceRule{ID: 1, ThresholdCount: 3, TargetCount: 12}}
	handler := NewAcceptanceHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	threshold := 5
	body, _ := json.Marshal(dto.UpdateAcceptanceRuleRequest{ThresholdCount: &threshold})
	c.Request, _ = http.NewRequest(http.MethodPut, "/admin/acceptance-rule", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.UpdateThreshold(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{5}, mock.updated)
}

func TestAcceptanceHandlerUpdateThresholdMissingField(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &acceptanceServiceMock{}
	handler := NewAcceptanceHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/admin/acceptance-rule", bytes.NewReader([]byte(`{}`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateThreshold(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.updated)
}

func TestAcceptanceHandlerUpdateThresholdInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAcceptanceHandler(&acceptanceServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/admin/acceptance-rule", bytes.NewReader([]byte(`invalid`)))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.UpdateThreshold(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
