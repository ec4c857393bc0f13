package controllers

import (
	"net/http"

	"github.com/angelmondragon/materiel-backend/api/middleware"
	"github.com/angelmondragon/materiel-backend/api/responses"
	"github.com/angelmondragon/materiel-backend/api/validators"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

const maxHistoryLimit = 1000

// MaterielHistory lists log rows for one materiel, newest first. limit=0
// (the default) returns every row.
func MaterielHistory(svc materiellogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxHistoryLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByMateriel(r.Context(), middleware.UserIDFromContext(r.Context()), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// UserMaterielHistory lists log rows naming the user as holder, newest first.
func UserMaterielHistory(svc materiellogs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history service unavailable"))
			return
		}

		userID, err := validators.ParseIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, maxHistoryLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByUser(r.Context(), middleware.UserIDFromContext(r.Context()), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
