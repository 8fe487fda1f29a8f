package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/platform/ctxutil"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
)

func requireCaller(c *gin.Context) (uuid.UUID, bool) {
	userID := ctxutil.CallerID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return uuid.Nil, false
	}
	return userID, true
}

func paramUUID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = errors.New("id required")
		}
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func dbcFrom(c *gin.Context) dbctx.Context {
	return dbctx.From(c.Request.Context())
}
