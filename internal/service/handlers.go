package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/metrics"
	"gitlab.com/dirk.krummacker/identity-service/internal/store"
	api "gitlab.com/dirk.krummacker/identity-service/pkg/model"
	"go.uber.org/zap"
)

// banner responds with the name of the service.
func banner(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"message": "identity reconciliation service"})
}

// health responds with OK if the store is reachable.
//
// Example REST API call:
//
//	> curl http://localhost:8080/healthz
func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// identify links the email address and phone number in the request's JSON to the identity cluster
// they belong to, creating or merging contacts as needed, and responds with the consolidated
// cluster. At least one of 'email' and 'phoneNumber' must be given; 'phoneNumber' may be a string
// or a number.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/identify --request "POST" --header "Content-Type: application/json" --data '{"email": "lorraine@hillvalley.edu", "phoneNumber": "123456"}'
//	> curl http://localhost:8080/identify --request "POST" --header "Content-Type: application/json" --data '{"email": "mcfly@hillvalley.edu", "phoneNumber": 123456}'
func (h *handler) identify(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.IdentifyDuration.Observe(time.Since(start).Seconds())
	}()

	var request api.IdentifyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		metrics.IdentifyRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid JSON"})
		return
	}

	result, err := h.identifier.Identify(c.Request.Context(), request.Email, request.PhoneNumber.StringPtr())
	if errors.Is(err, identity.ErrInvalidObservation) {
		metrics.IdentifyRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		metrics.IdentifyRequests.WithLabelValues(metrics.OutcomeError).Inc()
		h.logger.Error("identify failed",
			zap.Error(err),
			zap.Bool("inconsistent", errors.Is(err, identity.ErrInconsistent)),
			zap.Bool("conflict", errors.Is(err, store.ErrConflict)),
			zap.String("request_id", c.GetString(requestIdHeader)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
		return
	}

	metrics.IdentifyRequests.WithLabelValues(result.Outcome).Inc()
	c.IndentedJSON(http.StatusOK, api.IdentifyResponse{Contact: api.ContactSummary{
		PrimaryContactId:    result.Summary.PrimaryContactId,
		Emails:              result.Summary.Emails,
		PhoneNumbers:        result.Summary.PhoneNumbers,
		SecondaryContactIds: result.Summary.SecondaryContactIds,
	}})
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response. Deleted contacts are not found.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56
func (h *handler) findContactByID(c *gin.Context) {
	id, errConv := strconv.ParseInt(c.Param("id"), 10, 64)
	if errConv != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{Error: "invalid id parameter"})
		return
	}

	contact, err := h.store.FindContact(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, api.ErrorResponse{Error: "contact not found"})
		return
	}
	if err != nil {
		h.logger.Error("find contact failed", zap.Int64("id", id), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}
