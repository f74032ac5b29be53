package telephony

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/exitpal/exitpal/internal/mocks/api/handlers/telephony"
	"github.com/exitpal/exitpal/internal/model"
)

func setupHandler(t *testing.T) (*Handler, *mocks.MocksendService) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMocksendService(ctrl)
	handler := NewHandler(mockService, validator.New())
	return handler, mockService
}

func TestHandler_SendSMS_Success(t *testing.T) {
	handler, mockService := setupHandler(t)

	reqBody := SendSMSRequest{To: "+15551234567", Body: "on my way"}
	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/send-sms", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		SendDirect(gomock.Any(), model.ChannelSMS, "+15551234567", "on my way", "").
		Return("SM123", nil)

	handler.SendSMS(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "SM123")
}

func TestHandler_SendSMS_MissingBody(t *testing.T) {
	handler, _ := setupHandler(t)

	bodyBytes, _ := json.Marshal(SendSMSRequest{To: "+15551234567"})
	req := httptest.NewRequest(http.MethodPost, "/api/send-sms", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.SendSMS(c)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_SendVoice_ProviderError(t *testing.T) {
	handler, mockService := setupHandler(t)

	reqBody := SendVoiceRequest{To: "+15551234567", Message: "leaving now"}
	bodyBytes, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/send-voice", bytes.NewReader(bodyBytes))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	mockService.EXPECT().
		SendDirect(gomock.Any(), model.ChannelVoice, "+15551234567", "leaving now", "").
		Return("", errors.New("provider down"))

	handler.SendVoice(c)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
}

func TestHandler_TwiML_EscapesMessage(t *testing.T) {
	handler, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/twiml?message="+`Tom+%26+Jerry`, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.TwiML(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<Say>Tom &amp; Jerry</Say>")
	assert.Contains(t, w.Body.String(), voiceSignoff)
}

func TestHandler_TwiML_DefaultMessage(t *testing.T) {
	handler, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/twiml", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.TwiML(c)

	assert.Contains(t, w.Body.String(), defaultVoiceText)
}

func TestHandler_NCCO(t *testing.T) {
	handler, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ncco?message=leaving+now", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.NCCO(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var actions []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
	require.Len(t, actions, 2)
	assert.Equal(t, "talk", actions[0]["action"])
	assert.Equal(t, "leaving now", actions[0]["text"])
	assert.Equal(t, nccoSignoff, actions[1]["text"])
}
