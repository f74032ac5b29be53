package webhook

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	mocks "github.com/exitpal/exitpal/internal/mocks/api/handlers/webhook"
	"github.com/exitpal/exitpal/internal/model"
	msgrepo "github.com/exitpal/exitpal/internal/repository/message"
)

func setupHandler(t *testing.T) (*Handler, *mocks.MockreconcileService) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockreconcileService(ctrl)
	return NewHandler(mockService), mockService
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandler_SMS_CorrelatesByProviderRef(t *testing.T) {
	handler, mockService := setupHandler(t)

	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("MessageStatus", "delivered")
	form.Set("From", "+15557654321")
	form.Set("To", "+15551234567")
	form.Set("Body", "thanks")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = formRequest("/api/webhook/sms", form)

	mockService.EXPECT().
		Reconcile(gomock.Any(), "SM123").
		Return(model.ScheduledMessage{ID: uuid.New(), OwnerID: "owner-1", Status: model.StatusSent}, nil)

	handler.SMS(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Thank you for your response")
}

func TestHandler_SMS_UnknownRefStillAcks(t *testing.T) {
	handler, mockService := setupHandler(t)

	form := url.Values{}
	form.Set("MessageSid", "SM999")
	form.Set("MessageStatus", "undelivered")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = formRequest("/api/webhook/sms", form)

	mockService.EXPECT().
		Reconcile(gomock.Any(), "SM999").
		Return(model.ScheduledMessage{}, msgrepo.ErrMessageNotFound)

	handler.SMS(c)

	// The provider retries on non-2xx; an unmatched callback must still ack.
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestHandler_Voice_CorrelatesByCallSid(t *testing.T) {
	handler, mockService := setupHandler(t)

	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("CallStatus", "completed")
	form.Set("From", "+15557654321")
	form.Set("To", "+15551234567")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = formRequest("/api/webhook/voice", form)

	mockService.EXPECT().
		Reconcile(gomock.Any(), "CA123").
		Return(model.ScheduledMessage{ID: uuid.New(), OwnerID: "owner-1", Status: model.StatusSent}, nil)

	handler.Voice(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "<Say>")
}

func TestHandler_Voice_MissingRefSkipsLookup(t *testing.T) {
	handler, _ := setupHandler(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = formRequest("/api/webhook/voice", url.Values{})

	handler.Voice(c)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}
