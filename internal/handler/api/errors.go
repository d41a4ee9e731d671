package api

import (
	"errors"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

// toAppError maps domain failures onto transport errors.
func toAppError(err error) *xhttp.AppError {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return xhttp.ValidationFailed(ve.Field, ve.Message).WithError(err)
	}
	if ue, ok := models.AsUpstreamError(err); ok {
		return xhttp.BadGatewayError("ERR_UPSTREAM_"+string(ue.Kind), ue.Error()).WithError(err)
	}
	var se *models.SinkError
	if errors.As(err, &se) {
		return xhttp.BadGatewayError("ERR_AUDIT_SINK", "audit store unavailable").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
