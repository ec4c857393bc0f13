package controllers

import (
	"net/http"

	"github.com/angelmondragon/materiel-backend/api/middleware"
	"github.com/angelmondragon/materiel-backend/api/responses"
	"github.com/angelmondragon/materiel-backend/api/validators"
	"github.com/angelmondragon/materiel-backend/internal/materieltypes"
	"github.com/angelmondragon/materiel-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

type materielTypeRequest struct {
	Name string `json:"name" validate:"max=255"`
}

type materielTypeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func materielTypeFromModel(m *models.MaterielType) materielTypeResponse {
	return materielTypeResponse{ID: m.ID, Name: m.Name}
}

func MaterielTypeList(svc materieltypes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel type service unavailable"))
			return
		}

		rows, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]materielTypeResponse, 0, len(rows))
		for i := range rows {
			out = append(out, materielTypeFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func MaterielTypeCreate(svc materieltypes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel type service unavailable"))
			return
		}

		var payload materielTypeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), middleware.UserIDFromContext(r.Context()), payload.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, materielTypeFromModel(created))
	}
}

func MaterielTypeUpdate(svc materieltypes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel type service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "typeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload materielTypeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), middleware.UserIDFromContext(r.Context()), id, payload.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, materielTypeFromModel(updated))
	}
}

func MaterielTypeDelete(svc materieltypes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel type service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "typeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
