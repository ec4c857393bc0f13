package controllers

import (
	"net/http"

	"github.com/angelmondragon/materiel-backend/api/responses"
	"github.com/angelmondragon/materiel-backend/pkg/enums"
)

type statusOptions struct {
	Statuses []enums.MaterielStatus    `json:"statuses"`
	Actions  []enums.MaterielLogAction `json:"actions"`
}

// MaterielStatuses lists the status and log action enumerations.
func MaterielStatuses() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, statusOptions{
			Statuses: enums.MaterielStatuses(),
			Actions:  enums.MaterielLogActions(),
		})
	}
}
