package websocket

import (
	"github.com/movex/dispatch/internal/pkg/apperrors"
	"github.com/movex/dispatch/internal/pkg/constants"
	"github.com/movex/dispatch/internal/pkg/logger"
)

// errorCode maps the error taxonomy onto stable wire codes
func errorCode(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return constants.ErrorValidationFailed
	case apperrors.KindNotFound:
		return constants.ErrorNotFound
	case apperrors.KindNotAssociated:
		return constants.ErrorNotAssociated
	case apperrors.KindInvalidTransition:
		return constants.ErrorInvalidTransition
	case apperrors.KindConflict:
		return constants.ErrorConflict
	case apperrors.KindUpstream:
		return constants.ErrorUpstream
	default:
		return constants.ErrorInternalError
	}
}

// sendAppError converts an application error into a single error event on
// the session. Unclassified errors get a generic message; their detail stays
// in the server log.
func (h *SessionHandler) sendAppError(sess *session, err error) {
	code := errorCode(err)
	if code == constants.ErrorInternalError {
		logger.Error("unclassified gateway error",
			logger.String("session_id", sess.client.ID),
			logger.String("user_id", sess.userID),
			logger.Err(err))
		_ = sess.client.SendError(code, "operation failed")
		return
	}
	_ = sess.client.SendError(code, err.Error())
}
