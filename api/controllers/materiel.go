package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/materiel-backend/api/middleware"
	"github.com/angelmondragon/materiel-backend/api/responses"
	"github.com/angelmondragon/materiel-backend/api/validators"
	"github.com/angelmondragon/materiel-backend/internal/materiel"
	pkgerrors "github.com/angelmondragon/materiel-backend/pkg/errors"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
)

type materielRequest struct {
	Identifier string `json:"identifier" validate:"max=100"`
	Name       string `json:"name" validate:"max=255"`
	TypeID     *int64 `json:"typeid"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	UserID     *int64 `json:"userid"`
}

func (r materielRequest) toInput() materiel.Input {
	return materiel.Input{
		Identifier: r.Identifier,
		Name:       r.Name,
		TypeID:     r.TypeID,
		Status:     r.Status,
		Notes:      r.Notes,
		UserID:     r.UserID,
	}
}

type checkoutRequest struct {
	UserID int64  `json:"userid"`
	Notes  string `json:"notes"`
}

type checkinRequest struct {
	Notes string `json:"notes"`
}

func MaterielList(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		typeID, err := validators.ParseQueryID(r, "typeid")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		q := r.URL.Query()
		items, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), materiel.ListFilters{
			Status: q.Get("status"),
			TypeID: typeID,
			Search: q.Get("search"),
			Sort:   q.Get("sort"),
			Order:  q.Get("order"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func MaterielCreate(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		var payload materielRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), middleware.UserIDFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func MaterielGet(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func MaterielGetByIdentifier(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		identifier, err := pathParam(r, "identifier")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
				WithDetails(map[string]string{"identifier": "invalid"}))
			return
		}
		identifier = strings.TrimSpace(identifier)
		item, err := svc.GetByIdentifier(r.Context(), middleware.UserIDFromContext(r.Context()), identifier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func MaterielUpdate(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload materielRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), middleware.UserIDFromContext(r.Context()), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func MaterielDelete(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
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

func MaterielCheckout(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Checkout(r.Context(), middleware.UserIDFromContext(r.Context()), id, payload.UserID, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func MaterielCheckin(svc materiel.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materiel service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "materielId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkinRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Checkin(r.Context(), middleware.UserIDFromContext(r.Context()), id, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// pathParam decodes a URL parameter. chi routes on RawPath when the request
// carried escapes such as %2F, leaving the segment encoded.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}
