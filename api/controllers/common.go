package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/api/middleware"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
)

type caller struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func callerFrom(r *http.Request) (caller, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == uuid.Nil {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return caller{UserID: id, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
