package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Delegate/internal/repo"
	"github.com/shaiso/Delegate/internal/rpc"
)

// HandleCallError преобразует ошибку вызова в HTTP ответ.
//
//	*rpc.RemoteError              → 502 REMOTE_ERROR
//	rpc.ErrDecodeReply            → 502 BAD_REPLY
//	context.DeadlineExceeded      → 504 TIMEOUT
//	rpc.ErrQueueNotStarted,
//	rpc.ErrNotConnected,
//	rpc.ErrPublishRequest         → 503 UNAVAILABLE
func HandleCallError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var remote *rpc.RemoteError
	switch {
	case errors.As(err, &remote):
		Error(w, http.StatusBadGateway, ErrCodeRemoteError, err.Error())
	case errors.Is(err, rpc.ErrDecodeReply):
		Error(w, http.StatusBadGateway, ErrCodeBadReply, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusGatewayTimeout, ErrCodeTimeout, "worker did not reply in time")
	case errors.Is(err, rpc.ErrQueueNotStarted),
		errors.Is(err, rpc.ErrNotConnected),
		errors.Is(err, rpc.ErrPublishRequest):
		logger.Warn("delegator unavailable", "error", err)
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, notFoundMsg)
		return true
	}

	InternalError(w, logger, err)
	return true
}
